package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"
	"github.com/sukoonbot/sukoon/modbot"
	"github.com/sukoonbot/sukoon/modbot/database/models"
	"github.com/sukoonbot/sukoon/modbot/database/repositories"
	"github.com/sukoonbot/sukoon/modbot/utils"
)

var Case = discord.SlashCommandCreate{
	Name:        "case",
	Description: "Look up a moderation case",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:         "case",
			Description:  "Case number, or search by user or reason",
			Required:     true,
			Autocomplete: true,
		},
	},
}

var JailHistory = discord.SlashCommandCreate{
	Name:        "jailhistory",
	Description: "Show a user's archived jail-channel messages",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionUser{
			Name:        "user",
			Description: "The user whose jail messages to show",
			Required:    true,
		},
	},
}

func CaseHandler(b *modbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		raw := strings.TrimSpace(e.SlashCommandInteractionData().String("case"))
		caseNumber, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return replyError(e, "Pick a case from the autocomplete list or enter its number.")
		}

		ctx, cancel := context.WithTimeout(context.Background(), utils.DefaultQueryTimeout)
		defer cancel()

		mute, err := b.Quarantine.GetCase(ctx, *e.GuildID(), caseNumber)
		if err != nil {
			if errors.Is(err, repositories.ErrMuteNotFound) {
				return replyError(e, fmt.Sprintf("No case #%d in this server.", caseNumber))
			}
			return replyError(e, "Failed to load the case.")
		}

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{caseEmbed(mute)},
		})
	}
}

func CaseAutocomplete(b *modbot.Bot) handler.AutocompleteHandler {
	return func(e *handler.AutocompleteEvent) error {
		focused := e.Data.Focused()
		if focused.Name != "case" {
			return nil
		}

		query := ""
		if focused.Value != nil {
			var s string
			if err := json.Unmarshal(focused.Value, &s); err != nil {
				return e.AutocompleteResult([]discord.AutocompleteChoice{})
			}
			query = strings.TrimSpace(s)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		matches, err := b.Quarantine.SearchCases(ctx, *e.GuildID(), query, 25)
		if err != nil {
			slog.Error("Case search failed",
				slog.String("query", query),
				slog.Any("error", err))
			return e.AutocompleteResult([]discord.AutocompleteChoice{})
		}

		choices := make([]discord.AutocompleteChoice, 0, len(matches))
		for _, m := range matches {
			label := fmt.Sprintf("#%d %s", m.CaseNumber, m.Username)
			if m.Reason != "" {
				label += " (" + truncate(m.Reason, 60) + ")"
			}
			choices = append(choices, discord.AutocompleteChoiceString{
				Name:  truncate(label, 100),
				Value: strconv.FormatInt(m.CaseNumber, 10),
			})
		}
		return e.AutocompleteResult(choices)
	}
}

func JailHistoryHandler(b *modbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		user := e.SlashCommandInteractionData().User("user")

		ctx, cancel := context.WithTimeout(context.Background(), utils.DefaultQueryTimeout)
		defer cancel()

		msgs, err := b.Quarantine.Transcripts().ByUser(ctx, *e.GuildID(), user.ID, 100)
		if err != nil {
			return replyError(e, "Failed to load the jail history.")
		}
		if len(msgs) == 0 {
			return replySuccess(e, fmt.Sprintf("No archived jail messages for %s.", user.Mention()), true)
		}

		const perPage = 10
		totalPages := (len(msgs) + perPage - 1) / perPage

		return b.Paginator.Create(e.Respond, paginator.Pages{
			ID:      e.ID().String(),
			Creator: e.User().ID,
			PageFunc: func(page int, embed *discord.EmbedBuilder) {
				start := page * perPage
				end := min(start+perPage, len(msgs))

				var sb strings.Builder
				for _, m := range msgs[start:end] {
					fmt.Fprintf(&sb, "<t:%d:f> `#%d` %s\n", m.SentAt.Unix(), m.CaseNumber, truncate(m.Content, 120))
				}

				embed.
					SetTitle(fmt.Sprintf("📜 Jail History for %s", user.Username)).
					SetDescription(sb.String()).
					SetColor(utils.InfoColor).
					SetFooterText(fmt.Sprintf("Page %d/%d", page+1, totalPages))
			},
			Pages:      totalPages,
			ExpireMode: paginator.ExpireModeAfterLastUsage,
		}, false)
	}
}

func caseEmbed(m *models.Mute) discord.Embed {
	status := string(m.Status)
	expiry := "permanent"
	if m.ExpiresAt != nil {
		expiry = fmt.Sprintf("<t:%d:f>", m.ExpiresAt.Unix())
	}
	desc := fmt.Sprintf("**User:** <@%d> (%s)\n**Moderator:** <@%d>\n**Status:** %s\n**Reason:** %s\n**Muted:** <t:%d:f>\n**Expires:** %s",
		m.UserID, m.Username, m.ModeratorID, status, m.Reason, m.MutedAt.Unix(), expiry)
	if m.ResolvedAt != nil {
		desc += fmt.Sprintf("\n**Resolved:** <t:%d:f> by <@%d>", m.ResolvedAt.Unix(), m.ResolvedBy)
	}
	color := utils.WarningColor
	switch m.Status {
	case models.MuteStatusLifted, models.MuteStatusExpired:
		color = utils.SuccessColor
	case models.MuteStatusError:
		color = utils.ErrorColor
	}
	return discord.Embed{
		Title:       fmt.Sprintf("Case #%d", m.CaseNumber),
		Description: desc,
		Color:       color,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
