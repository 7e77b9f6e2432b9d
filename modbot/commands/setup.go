package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/sukoonbot/sukoon/modbot"
	"github.com/sukoonbot/sukoon/modbot/quarantine"
	"github.com/sukoonbot/sukoon/modbot/utils"
)

var SetupMute = discord.SlashCommandCreate{
	Name:        "setup-mute",
	Description: "Provision the mute role, jail channel and overwrites",
}

var CheckMutePerms = discord.SlashCommandCreate{
	Name:        "check-muteperms",
	Description: "Verify the mute setup is still intact",
}

var ReapplyMutePerms = discord.SlashCommandCreate{
	Name:        "reapply-mute-perms",
	Description: "Re-propagate mute overwrites across every channel",
}

func SetupMuteHandler(b *modbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if err := e.DeferCreateMessage(false); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		res, err := b.Quarantine.Setup(ctx, *e.GuildID())
		if err != nil {
			_, err = e.UpdateInteractionResponse(discord.MessageUpdate{
				Embeds: &[]discord.Embed{{
					Description: "❌ Setup failed: " + err.Error(),
					Color:       utils.ErrorColor,
				}},
			})
			return err
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "**Mute role:** <@&%d> (%s)\n", res.Config.MuteRoleID, createdOrReused(res.CreatedRole))
		fmt.Fprintf(&sb, "**Jail channel:** <#%d> (%s)\n", res.Config.JailChannelID, createdOrReused(res.CreatedJail))
		fmt.Fprintf(&sb, "**Log channel:** <#%d> (%s)\n", res.Config.LogChannelID, createdOrReused(res.CreatedLog))
		if len(res.FailedChannels) > 0 {
			fmt.Fprintf(&sb, "\n⚠️ Could not update overwrites for: %s", strings.Join(res.FailedChannels, ", "))
		}

		_, err = e.UpdateInteractionResponse(discord.MessageUpdate{
			Embeds: &[]discord.Embed{{
				Title:       "🔧 Mute Setup Complete",
				Description: sb.String(),
				Color:       utils.SuccessColor,
			}},
		})
		return err
	}
}

func CheckMutePermsHandler(b *modbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), utils.DefaultQueryTimeout)
		defer cancel()

		_, problems, err := b.Quarantine.CheckSetup(ctx, *e.GuildID())
		if err != nil {
			if errors.Is(err, quarantine.ErrNotConfigured) {
				return replyError(e, "Mute is not set up here yet. Run /setup-mute first.")
			}
			return replyError(e, "Failed to check the setup: "+err.Error())
		}
		if len(problems) == 0 {
			return replySuccess(e, "The mute setup is intact.", false)
		}

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{{
				Title:       "⚠️ Mute Setup Problems",
				Description: "- " + strings.Join(problems, "\n- "),
				Color:       utils.WarningColor,
			}},
		})
	}
}

func ReapplyMutePermsHandler(b *modbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if err := e.DeferCreateMessage(false); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		failed, err := b.Quarantine.ReapplySweep(ctx, *e.GuildID())
		if err != nil {
			_, err = e.UpdateInteractionResponse(discord.MessageUpdate{
				Embeds: &[]discord.Embed{{
					Description: "❌ Failed to reapply overwrites: " + err.Error(),
					Color:       utils.ErrorColor,
				}},
			})
			return err
		}

		desc := "✅ Overwrites reapplied across all channels."
		color := utils.SuccessColor
		if len(failed) > 0 {
			desc = "⚠️ Done, but some channels failed: " + strings.Join(failed, ", ")
			color = utils.WarningColor
		}
		_, err = e.UpdateInteractionResponse(discord.MessageUpdate{
			Embeds: &[]discord.Embed{{
				Description: desc,
				Color:       color,
			}},
		})
		return err
	}
}

func createdOrReused(created bool) string {
	if created {
		return "created"
	}
	return "reused"
}
