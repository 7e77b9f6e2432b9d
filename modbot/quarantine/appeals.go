package quarantine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sukoonbot/sukoon/modbot/database/models"
	"github.com/sukoonbot/sukoon/modbot/gateway"
)

var (
	ErrAppealCooldown = errors.New("appeal cooldown has not elapsed")
	ErrAppealPending  = errors.New("an appeal is already pending")
	ErrAppealResolved = errors.New("appeal was already resolved")
)

// SubmitAppeal files an appeal against the user's active mute and posts it to
// the staff review channel when one is configured.
func (m *Manager) SubmitAppeal(ctx context.Context, guildID, userID snowflake.ID, content string) (*models.Appeal, error) {
	mute, err := m.mutes.GetActiveByUser(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}
	if mute == nil {
		return nil, ErrNotMuted
	}

	if pending, err := m.appeals.GetPendingByUser(ctx, guildID, userID); err != nil {
		return nil, err
	} else if pending != nil {
		return nil, ErrAppealPending
	}

	if latest, err := m.appeals.GetLatestByUser(ctx, guildID, userID); err != nil {
		return nil, err
	} else if latest != nil && time.Since(latest.CreatedAt) < m.cfg.AppealCooldown {
		return nil, ErrAppealCooldown
	}

	appeal := &models.Appeal{
		GuildID:    guildID,
		UserID:     userID,
		CaseNumber: mute.CaseNumber,
		Content:    content,
		Status:     models.AppealStatusPending,
	}

	if err := m.appeals.Create(ctx, appeal); err != nil {
		return nil, err
	}

	cfg, err := m.guildConfigs.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if cfg != nil && cfg.AppealChannelID != 0 {
		ref, err := m.client.SendMessage(ctx, cfg.AppealChannelID, appealReviewMessage(appeal.ID, mute, content))
		if err != nil {
			slog.Warn("Failed to post appeal for review",
				slog.String("type", "mute"),
				slog.String("guild_id", guildID.String()),
				slog.Any("error", err))
		} else {
			appeal.ReviewChannelID = ref.ChannelID
			appeal.ReviewMessageID = ref.MessageID
			if err := m.appeals.SetReviewRef(ctx, appeal.ID, ref.ChannelID, ref.MessageID); err != nil {
				slog.Warn("Failed to persist appeal review ref",
					slog.Int64("appeal_id", appeal.ID),
					slog.Any("error", err))
			}
		}
	}

	slog.Info("Appeal submitted",
		slog.String("type", "mute"),
		slog.String("guild_id", guildID.String()),
		slog.String("user_id", userID.String()),
		slog.Int64("case", mute.CaseNumber))
	return appeal, nil
}

// ReviewAppeal resolves a pending appeal. Approval lifts the underlying mute
// when it is still active.
func (m *Manager) ReviewAppeal(ctx context.Context, appealID int64, approve bool, reviewerID snowflake.ID, note string) (*models.Appeal, error) {
	appeal, err := m.appeals.GetByID(ctx, appealID)
	if err != nil {
		return nil, err
	}

	status := models.AppealStatusDenied
	if approve {
		status = models.AppealStatusApproved
	}

	claimed, err := m.appeals.Review(ctx, appealID, status, reviewerID, note)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrAppealResolved
	}
	appeal.Status = status
	appeal.ReviewerID = reviewerID
	appeal.ReviewNote = note

	if approve {
		mute, err := m.mutes.GetActiveByUser(ctx, appeal.GuildID, appeal.UserID)
		if err != nil {
			return nil, err
		}
		if mute != nil && mute.CaseNumber == appeal.CaseNumber {
			reason := fmt.Sprintf("appeal approved by <@%d>", reviewerID)
			if err := m.Lift(ctx, mute, models.MuteStatusLifted, reviewerID, reason); err != nil && !errors.Is(err, ErrAlreadyLifted) {
				return nil, err
			}
		}
	}

	if appeal.ReviewMessageID != 0 {
		update := appealReviewedUpdate(appeal)
		if err := m.client.EditMessage(ctx, reviewRef(appeal), update); err != nil {
			slog.Warn("Failed to update appeal review message",
				slog.String("type", "mute"),
				slog.Int64("appeal_id", appeal.ID),
				slog.Any("error", err))
		}
	}

	slog.Info("Appeal reviewed",
		slog.String("type", "mute"),
		slog.Int64("appeal_id", appeal.ID),
		slog.String("status", string(status)))
	return appeal, nil
}

func reviewRef(appeal *models.Appeal) gateway.MessageRef {
	return gateway.MessageRef{ChannelID: appeal.ReviewChannelID, MessageID: appeal.ReviewMessageID}
}

func appealReviewMessage(appealID int64, mute *models.Mute, content string) discord.MessageCreate {
	return discord.NewMessageCreateBuilder().
		SetEmbeds(discord.NewEmbedBuilder().
			SetTitle(fmt.Sprintf("Appeal for case #%d", mute.CaseNumber)).
			SetDescriptionf("**User:** <@%d>\n**Original reason:** %s\n\n%s", mute.UserID, mute.Reason, content).
			SetColor(0xFEE75C).
			Build()).
		AddActionRow(
			discord.NewSuccessButton("Approve", fmt.Sprintf("/appeal-approve/%d", appealID)),
			discord.NewDangerButton("Deny", fmt.Sprintf("/appeal-deny/%d", appealID)),
		).
		Build()
}

func appealReviewedUpdate(appeal *models.Appeal) discord.MessageUpdate {
	color := 0xED4245
	if appeal.Status == models.AppealStatusApproved {
		color = 0x57F287
	}
	embed := discord.NewEmbedBuilder().
		SetTitle(fmt.Sprintf("Appeal for case #%d (%s)", appeal.CaseNumber, appeal.Status)).
		SetDescriptionf("**User:** <@%d>\n**Reviewed by:** <@%d>\n**Note:** %s", appeal.UserID, appeal.ReviewerID, appeal.ReviewNote).
		SetColor(color).
		Build()
	return discord.MessageUpdate{
		Embeds:     &[]discord.Embed{embed},
		Components: &[]discord.ContainerComponent{},
	}
}
