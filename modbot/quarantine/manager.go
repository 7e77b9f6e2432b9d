// Package quarantine implements the mute lifecycle: role-based isolation of
// a member with an allocated case number, timed or manual release, channel
// overwrite propagation, jail transcripts, and appeals.
package quarantine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sukoonbot/sukoon/modbot/database/models"
	"github.com/sukoonbot/sukoon/modbot/database/repositories"
	"github.com/sukoonbot/sukoon/modbot/database/transcripts"
	"github.com/sukoonbot/sukoon/modbot/gateway"
	"github.com/sukoonbot/sukoon/modbot/notify"
	"github.com/sukoonbot/sukoon/modbot/tasks"
)

var (
	ErrNotConfigured = errors.New("quarantine is not set up for this guild")
	ErrNotMuted      = errors.New("user has no active mute")
	ErrAlreadyLifted = errors.New("mute was already lifted")
	ErrTargetIsOwner = errors.New("cannot mute the guild owner")
	ErrHierarchy     = errors.New("target outranks or equals the actor")
	ErrTargetIsBot   = errors.New("cannot mute the bot itself")
)

// TranscriptStore archives jail-channel messages; implemented by the Mongo
// store and by a fake in tests.
type TranscriptStore interface {
	Record(ctx context.Context, msg transcripts.Message) error
	ByUser(ctx context.Context, guildID, userID snowflake.ID, limit int64) ([]transcripts.Message, error)
	ByCase(ctx context.Context, guildID snowflake.ID, caseNumber int64, limit int64) ([]transcripts.Message, error)
}

type Manager struct {
	mutes        repositories.MuteRepository
	appeals      repositories.AppealRepository
	counters     repositories.CounterRepository
	guildConfigs repositories.GuildConfigRepository
	transcripts  TranscriptStore
	notifier     *notify.Notifier
	client       gateway.Client
	supervisor   *tasks.Supervisor
	cfg          Config

	tickMu sync.Mutex

	// Per-guild locks for the overwrite sweep; advisory, in-memory only.
	sweepLocks sync.Map
}

func NewManager(
	mutes repositories.MuteRepository,
	appeals repositories.AppealRepository,
	counters repositories.CounterRepository,
	guildConfigs repositories.GuildConfigRepository,
	transcriptStore TranscriptStore,
	notifier *notify.Notifier,
	client gateway.Client,
	supervisor *tasks.Supervisor,
	cfg Config,
) *Manager {
	return &Manager{
		mutes:        mutes,
		appeals:      appeals,
		counters:     counters,
		guildConfigs: guildConfigs,
		transcripts:  transcriptStore,
		notifier:     notifier,
		client:       client,
		supervisor:   supervisor,
		cfg:          cfg,
	}
}

type ApplyParams struct {
	GuildID     snowflake.ID
	TargetID    snowflake.ID
	ModeratorID snowflake.ID
	Reason      string
	Duration    time.Duration // zero means manual resolution required
}

// Apply quarantines a member: allocates a case number, strips their roles,
// grants the mute role and persists the case. Hierarchy and configuration
// are checked before any side effect.
func (m *Manager) Apply(ctx context.Context, params ApplyParams) (*models.Mute, error) {
	cfg, err := m.guildConfigs.Get(ctx, params.GuildID)
	if err != nil {
		return nil, err
	}
	if cfg == nil || !cfg.IsComplete() {
		return nil, ErrNotConfigured
	}

	if params.TargetID == m.client.BotUserID() {
		return nil, ErrTargetIsBot
	}

	guild, err := m.client.GetGuild(ctx, params.GuildID)
	if err != nil {
		return nil, err
	}
	if params.TargetID == guild.OwnerID {
		return nil, ErrTargetIsOwner
	}

	target, err := m.client.GetMember(ctx, params.GuildID, params.TargetID)
	if err != nil {
		return nil, err
	}

	if err := m.checkHierarchy(ctx, params.GuildID, target, params.ModeratorID); err != nil {
		return nil, err
	}

	if existing, err := m.mutes.GetActiveByUser(ctx, params.GuildID, params.TargetID); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, repositories.ErrUserAlreadyMuted
	}

	caseNumber, err := m.counters.Next(ctx, params.GuildID, repositories.CounterCaseNumber)
	if err != nil {
		return nil, fmt.Errorf("case allocation failed: %w", err)
	}

	reason := fmt.Sprintf("Case #%d: %s", caseNumber, params.Reason)
	if err := retryTransient(ctx, func() error {
		return m.client.GrantRole(ctx, params.GuildID, params.TargetID, cfg.MuteRoleID, reason)
	}); err != nil {
		return nil, fmt.Errorf("failed to grant mute role: %w", err)
	}

	// Strip the member's other roles so channel-level allows cannot leak
	// through. Individual failures are tolerated, the mute role already
	// denies everywhere.
	restored := make([]int64, 0, len(target.RoleIDs))
	for _, roleID := range target.RoleIDs {
		if roleID == cfg.MuteRoleID {
			continue
		}
		if err := m.client.RevokeRole(ctx, params.GuildID, params.TargetID, roleID, reason); err != nil {
			slog.Warn("Failed to strip role during mute",
				slog.String("type", "mute"),
				slog.String("user_id", params.TargetID.String()),
				slog.String("role_id", roleID.String()),
				slog.Any("error", err))
			continue
		}
		restored = append(restored, int64(roleID))
	}

	mute := &models.Mute{
		GuildID:        params.GuildID,
		UserID:         params.TargetID,
		Username:       target.Username,
		CaseNumber:     caseNumber,
		ModeratorID:    params.ModeratorID,
		Reason:         params.Reason,
		Status:         models.MuteStatusActive,
		RestoreRoleIDs: restored,
		MutedAt:        time.Now(),
	}
	if params.Duration > 0 {
		expires := mute.MutedAt.Add(params.Duration)
		mute.ExpiresAt = &expires
	}

	if err := m.mutes.Create(ctx, mute); err != nil {
		// Roll the role change back so gateway state does not desync
		// from a case that was never recorded.
		if revErr := m.client.RevokeRole(ctx, params.GuildID, params.TargetID, cfg.MuteRoleID, "mute persist failed"); revErr != nil {
			slog.Error("Failed to roll back mute role",
				slog.String("type", "mute"),
				slog.String("user_id", params.TargetID.String()),
				slog.Any("error", revErr))
		}
		return nil, err
	}

	m.sendMuteNotice(ctx, mute, guild.Name)

	slog.Info("Mute applied",
		slog.String("type", "mute"),
		slog.String("guild_id", params.GuildID.String()),
		slog.String("user_id", params.TargetID.String()),
		slog.Int64("case", caseNumber),
		slog.Bool("permanent", mute.IsPermanent()))
	return mute, nil
}

// Lift releases an active mute. The role revoke is tolerated failing so a
// permissions hiccup cannot leave the store claiming the member is still
// muted.
func (m *Manager) Lift(ctx context.Context, mute *models.Mute, status models.MuteStatus, by snowflake.ID, reason string) error {
	cfg, err := m.guildConfigs.Get(ctx, mute.GuildID)
	if err != nil {
		return err
	}

	if cfg != nil && cfg.MuteRoleID != 0 {
		if err := retryTransient(ctx, func() error {
			return m.client.RevokeRole(ctx, mute.GuildID, mute.UserID, cfg.MuteRoleID, reason)
		}); err != nil && !errors.Is(err, gateway.ErrNotFound) {
			slog.Warn("Failed to revoke mute role, lifting anyway",
				slog.String("type", "mute"),
				slog.String("user_id", mute.UserID.String()),
				slog.Any("error", err))
		}
	}

	for _, roleID := range mute.RestoreRoleIDs {
		if err := m.client.GrantRole(ctx, mute.GuildID, mute.UserID, snowflake.ID(roleID), reason); err != nil {
			slog.Warn("Failed to restore role after mute",
				slog.String("type", "mute"),
				slog.String("user_id", mute.UserID.String()),
				slog.Int64("role_id", roleID),
				slog.Any("error", err))
		}
	}

	claimed, err := m.mutes.Resolve(ctx, mute.ID, status, by, reason)
	if err != nil {
		return err
	}
	if !claimed {
		return ErrAlreadyLifted
	}

	slog.Info("Mute lifted",
		slog.String("type", "mute"),
		slog.String("guild_id", mute.GuildID.String()),
		slog.String("user_id", mute.UserID.String()),
		slog.Int64("case", mute.CaseNumber),
		slog.String("status", string(status)))
	return nil
}

// LiftByUser resolves the target's active mute, for the unmute command.
func (m *Manager) LiftByUser(ctx context.Context, guildID, userID, by snowflake.ID, reason string) (*models.Mute, error) {
	mute, err := m.mutes.GetActiveByUser(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}
	if mute == nil {
		return nil, ErrNotMuted
	}
	if err := m.Lift(ctx, mute, models.MuteStatusLifted, by, reason); err != nil {
		return nil, err
	}
	return mute, nil
}

// LiftAll resolves every active mute in the guild. Per-case failures are
// logged and skipped so one broken case cannot block the rest.
func (m *Manager) LiftAll(ctx context.Context, guildID, by snowflake.ID, reason string) (int, error) {
	active, err := m.mutes.ListActive(ctx, guildID)
	if err != nil {
		return 0, err
	}
	lifted := 0
	for _, mute := range active {
		if err := m.Lift(ctx, mute, models.MuteStatusLifted, by, reason); err != nil {
			slog.Error("Failed to lift mute during clear",
				slog.Int64("case", mute.CaseNumber),
				slog.Any("error", err))
			continue
		}
		lifted++
	}
	return lifted, nil
}

// GetCase looks up a mute by its guild-scoped case number.
func (m *Manager) GetCase(ctx context.Context, guildID snowflake.ID, caseNumber int64) (*models.Mute, error) {
	return m.mutes.GetByCase(ctx, guildID, caseNumber)
}

// ListActive returns the guild's active mutes, newest case first.
func (m *Manager) ListActive(ctx context.Context, guildID snowflake.ID) ([]*models.Mute, error) {
	return m.mutes.ListActive(ctx, guildID)
}

// Transcripts exposes the archive store for history commands.
func (m *Manager) Transcripts() TranscriptStore {
	return m.transcripts
}

// RecordJailMessage archives a message seen in the jail channel for the
// active case of its author. Messages from users without an active case are
// ignored.
func (m *Manager) RecordJailMessage(ctx context.Context, guildID, channelID, messageID, authorID snowflake.ID, username, content string) error {
	cfg, err := m.guildConfigs.Get(ctx, guildID)
	if err != nil {
		return err
	}
	if cfg == nil || cfg.JailChannelID != channelID {
		return nil
	}

	mute, err := m.mutes.GetActiveByUser(ctx, guildID, authorID)
	if err != nil {
		return err
	}
	if mute == nil {
		return nil
	}

	return m.transcripts.Record(ctx, transcripts.Message{
		GuildID:    int64(guildID),
		UserID:     int64(authorID),
		Username:   username,
		CaseNumber: mute.CaseNumber,
		ChannelID:  int64(channelID),
		MessageID:  int64(messageID),
		Content:    content,
		SentAt:     time.Now(),
	})
}

// EnforceJailMentions removes a jail-channel message through which a muted
// member pings other users, and warns them once. Returns true when the
// message was removed.
func (m *Manager) EnforceJailMentions(ctx context.Context, guildID, channelID, messageID, authorID snowflake.ID, mentionCount int) (bool, error) {
	if mentionCount == 0 {
		return false, nil
	}

	cfg, err := m.guildConfigs.Get(ctx, guildID)
	if err != nil {
		return false, err
	}
	if cfg == nil || cfg.JailChannelID != channelID {
		return false, nil
	}

	mute, err := m.mutes.GetActiveByUser(ctx, guildID, authorID)
	if err != nil {
		return false, err
	}
	if mute == nil {
		return false, nil
	}

	ref := gateway.MessageRef{ChannelID: channelID, MessageID: messageID}
	if err := m.client.DeleteMessage(ctx, ref); err != nil && !errors.Is(err, gateway.ErrNotFound) {
		return false, err
	}

	warn := discord.NewMessageCreateBuilder().
		SetContentf("<@%d> you cannot mention other users while muted.", authorID).
		Build()
	if _, err := m.client.SendMessage(ctx, channelID, warn); err != nil {
		slog.Warn("Failed to warn muted member about mentions",
			slog.String("type", "mute"),
			slog.String("user_id", authorID.String()),
			slog.Any("error", err))
	}
	return true, nil
}

func (m *Manager) checkHierarchy(ctx context.Context, guildID snowflake.ID, target gateway.Member, moderatorID snowflake.ID) error {
	roles, err := m.client.GetRoles(ctx, guildID)
	if err != nil {
		return err
	}
	positions := make(map[snowflake.ID]int, len(roles))
	for _, r := range roles {
		positions[r.ID] = r.Position
	}

	targetTop := topRolePosition(target, positions)

	moderator, err := m.client.GetMember(ctx, guildID, moderatorID)
	if err != nil {
		return err
	}
	if targetTop >= topRolePosition(moderator, positions) {
		return ErrHierarchy
	}

	bot, err := m.client.GetMember(ctx, guildID, m.client.BotUserID())
	if err != nil {
		return err
	}
	if targetTop >= topRolePosition(bot, positions) {
		return ErrHierarchy
	}
	return nil
}

func topRolePosition(member gateway.Member, positions map[snowflake.ID]int) int {
	top := 0
	for _, id := range member.RoleIDs {
		if pos, ok := positions[id]; ok && pos > top {
			top = pos
		}
	}
	return top
}

func (m *Manager) sendMuteNotice(ctx context.Context, mute *models.Mute, guildName string) {
	until := "until manually unmuted"
	if mute.ExpiresAt != nil {
		until = fmt.Sprintf("until <t:%d:F>", mute.ExpiresAt.Unix())
	}
	msg := discord.NewMessageCreateBuilder().
		SetContentf("You have been muted in **%s** (case #%d) %s.\n**Reason:** %s\nThis message will self-destruct.",
			guildName, mute.CaseNumber, until, mute.Reason).
		Build()

	if err := m.notifier.SendSelfDestructing(ctx, mute.UserID, msg, m.cfg.DMDeleteAfter); err != nil {
		if errors.Is(err, gateway.ErrBlocked) {
			slog.Debug("Muted user has DMs disabled",
				slog.String("type", "mute"),
				slog.String("user_id", mute.UserID.String()))
			return
		}
		slog.Warn("Failed to send mute notice",
			slog.String("type", "mute"),
			slog.String("user_id", mute.UserID.String()),
			slog.Any("error", err))
	}
}

func retryTransient(ctx context.Context, fn func() error) error {
	var err error
	backoff := 500 * time.Millisecond
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		err = fn()
		if err == nil || !gateway.IsTransient(err) {
			return err
		}
	}
	return err
}
