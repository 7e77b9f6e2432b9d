package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"
	"github.com/sukoonbot/sukoon/modbot"
	"github.com/sukoonbot/sukoon/modbot/database/repositories"
	"github.com/sukoonbot/sukoon/modbot/quarantine"
	"github.com/sukoonbot/sukoon/modbot/utils"
)

var Mute = discord.SlashCommandCreate{
	Name:        "mute",
	Description: "Quarantine a member in the jail channel",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionUser{
			Name:        "user",
			Description: "The member to mute",
			Required:    true,
		},
		discord.ApplicationCommandOptionString{
			Name:        "reason",
			Description: "Why the member is being muted",
			Required:    true,
		},
		discord.ApplicationCommandOptionString{
			Name:        "duration",
			Description: "How long the mute lasts (e.g. 1h, 2d); omit for permanent",
			Required:    false,
		},
	},
}

var Unmute = discord.SlashCommandCreate{
	Name:        "unmute",
	Description: "Lift a member's mute and restore their roles",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionUser{
			Name:        "user",
			Description: "The member to unmute",
			Required:    true,
		},
		discord.ApplicationCommandOptionString{
			Name:        "reason",
			Description: "Why the mute is being lifted",
			Required:    false,
		},
	},
}

var MuteList = discord.SlashCommandCreate{
	Name:        "mutelist",
	Description: "List the currently muted members",
}

var ClearMutes = discord.SlashCommandCreate{
	Name:        "clearmutes",
	Description: "Lift every active mute in this server",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:        "reason",
			Description: "Why all mutes are being lifted",
			Required:    false,
		},
	},
}

func MuteHandler(b *modbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		data := e.SlashCommandInteractionData()
		user := data.User("user")

		var duration time.Duration
		if raw, ok := data.OptString("duration"); ok {
			parsed, err := utils.ParseDuration(raw)
			if err != nil {
				return replyError(e, "Invalid duration: "+err.Error())
			}
			duration = parsed
		}

		ctx, cancel := context.WithTimeout(context.Background(), utils.DefaultQueryTimeout)
		defer cancel()

		mute, err := b.Quarantine.Apply(ctx, quarantine.ApplyParams{
			GuildID:     *e.GuildID(),
			TargetID:    user.ID,
			ModeratorID: e.User().ID,
			Reason:      data.String("reason"),
			Duration:    duration,
		})
		if err != nil {
			switch {
			case errors.Is(err, quarantine.ErrNotConfigured):
				return replyError(e, "Mute is not set up here yet. Run /setup-mute first.")
			case errors.Is(err, quarantine.ErrTargetIsBot):
				return replyError(e, "I cannot mute myself.")
			case errors.Is(err, quarantine.ErrTargetIsOwner):
				return replyError(e, "The server owner cannot be muted.")
			case errors.Is(err, quarantine.ErrHierarchy):
				return replyError(e, "That member's top role is too high to mute.")
			case errors.Is(err, repositories.ErrUserAlreadyMuted):
				return replyError(e, "That member is already muted.")
			default:
				return replyError(e, "Failed to mute: "+err.Error())
			}
		}

		expiry := "never (manual unmute required)"
		if mute.ExpiresAt != nil {
			expiry = fmt.Sprintf("<t:%d:R>", mute.ExpiresAt.Unix())
		}
		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{{
				Title: fmt.Sprintf("🔇 Muted (case #%d)", mute.CaseNumber),
				Description: fmt.Sprintf("**User:** %s\n**Reason:** %s\n**Expires:** %s",
					user.Mention(), mute.Reason, expiry),
				Color: utils.WarningColor,
			}},
		})
	}
}

func UnmuteHandler(b *modbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		data := e.SlashCommandInteractionData()
		user := data.User("user")
		reason, _ := data.OptString("reason")
		if reason == "" {
			reason = "manual unmute"
		}

		ctx, cancel := context.WithTimeout(context.Background(), utils.DefaultQueryTimeout)
		defer cancel()

		mute, err := b.Quarantine.LiftByUser(ctx, *e.GuildID(), user.ID, e.User().ID, reason)
		if err != nil {
			switch {
			case errors.Is(err, quarantine.ErrNotMuted):
				return replyError(e, "That member is not muted.")
			case errors.Is(err, quarantine.ErrAlreadyLifted):
				return replyError(e, "That mute was already resolved.")
			default:
				return replyError(e, "Failed to unmute: "+err.Error())
			}
		}

		return replySuccess(e, fmt.Sprintf("%s has been unmuted (case #%d).", user.Mention(), mute.CaseNumber), false)
	}
}

const mutesPerPage = 10

func MuteListHandler(b *modbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), utils.DefaultQueryTimeout)
		defer cancel()

		active, err := b.Quarantine.ListActive(ctx, *e.GuildID())
		if err != nil {
			return replyError(e, "Failed to load the mute list.")
		}
		if len(active) == 0 {
			return replySuccess(e, "Nobody is muted right now.", true)
		}

		totalPages := (len(active) + mutesPerPage - 1) / mutesPerPage

		return b.Paginator.Create(e.Respond, paginator.Pages{
			ID:      e.ID().String(),
			Creator: e.User().ID,
			PageFunc: func(page int, embed *discord.EmbedBuilder) {
				start := page * mutesPerPage
				end := min(start+mutesPerPage, len(active))

				var sb strings.Builder
				for _, m := range active[start:end] {
					expiry := "permanent"
					if m.ExpiresAt != nil {
						expiry = fmt.Sprintf("expires <t:%d:R>", m.ExpiresAt.Unix())
					}
					fmt.Fprintf(&sb, "`#%d` <@%d> (%s) %s\n", m.CaseNumber, m.UserID, expiry, m.Reason)
				}

				embed.
					SetTitle(fmt.Sprintf("🔇 Active Mutes (%d)", len(active))).
					SetDescription(sb.String()).
					SetColor(utils.InfoColor).
					SetFooterText(fmt.Sprintf("Page %d/%d", page+1, totalPages))
			},
			Pages:      totalPages,
			ExpireMode: paginator.ExpireModeAfterLastUsage,
		}, false)
	}
}

func ClearMutesHandler(b *modbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		data := e.SlashCommandInteractionData()
		reason, _ := data.OptString("reason")
		if reason == "" {
			reason = "bulk clear"
		}

		if err := e.DeferCreateMessage(false); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		lifted, err := b.Quarantine.LiftAll(ctx, *e.GuildID(), e.User().ID, reason)
		if err != nil {
			_, err = e.UpdateInteractionResponse(discord.MessageUpdate{
				Embeds: &[]discord.Embed{{
					Description: "❌ Failed to clear mutes: " + err.Error(),
					Color:       utils.ErrorColor,
				}},
			})
			return err
		}

		_, err = e.UpdateInteractionResponse(discord.MessageUpdate{
			Embeds: &[]discord.Embed{{
				Description: fmt.Sprintf("✅ Lifted %d mute(s).", lifted),
				Color:       utils.SuccessColor,
			}},
		})
		return err
	}
}
