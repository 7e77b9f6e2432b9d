package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/sukoonbot/sukoon/modbot"
	"github.com/sukoonbot/sukoon/modbot/quarantine"
	"github.com/sukoonbot/sukoon/modbot/utils"
)

var Appeal = discord.SlashCommandCreate{
	Name:        "appeal",
	Description: "Appeal your current mute",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:        "message",
			Description: "Why the mute should be lifted",
			Required:    true,
		},
	},
}

func AppealHandler(b *modbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		content := e.SlashCommandInteractionData().String("message")

		ctx, cancel := context.WithTimeout(context.Background(), utils.DefaultQueryTimeout)
		defer cancel()

		appeal, err := b.Quarantine.SubmitAppeal(ctx, *e.GuildID(), e.User().ID, content)
		if err != nil {
			switch {
			case errors.Is(err, quarantine.ErrNotMuted):
				return replyError(e, "You are not muted, there is nothing to appeal.")
			case errors.Is(err, quarantine.ErrAppealPending):
				return replyError(e, "You already have a pending appeal.")
			case errors.Is(err, quarantine.ErrAppealCooldown):
				return replyError(e, "You appealed recently, wait before appealing again.")
			default:
				return replyError(e, "Failed to submit the appeal.")
			}
		}

		return replySuccess(e, fmt.Sprintf("Appeal for case #%d submitted. Staff will review it.", appeal.CaseNumber), true)
	}
}

func AppealReviewComponent(b *modbot.Bot, approve bool) handler.ComponentHandler {
	prefix := "/appeal-deny/"
	if approve {
		prefix = "/appeal-approve/"
	}
	return func(e *handler.ComponentEvent) error {
		data, ok := e.Data.(discord.ButtonInteractionData)
		if !ok {
			return fmt.Errorf("invalid interaction type")
		}

		appealID, err := strconv.ParseInt(strings.TrimPrefix(data.CustomID(), prefix), 10, 64)
		if err != nil {
			return e.CreateMessage(discord.MessageCreate{
				Content: "Malformed appeal reference.",
				Flags:   discord.MessageFlagEphemeral,
			})
		}

		ctx, cancel := context.WithTimeout(context.Background(), utils.DefaultQueryTimeout)
		defer cancel()

		note := "reviewed via button"
		appeal, err := b.Quarantine.ReviewAppeal(ctx, appealID, approve, e.User().ID, note)
		if err != nil {
			msg := "Failed to review the appeal."
			if errors.Is(err, quarantine.ErrAppealResolved) {
				msg = "That appeal was already resolved."
			}
			return e.CreateMessage(discord.MessageCreate{
				Content: msg,
				Flags:   discord.MessageFlagEphemeral,
			})
		}

		verdict := "denied"
		if approve {
			verdict = "approved, the mute has been lifted"
		}
		return e.CreateMessage(discord.MessageCreate{
			Content: fmt.Sprintf("Appeal for case #%d %s.", appeal.CaseNumber, verdict),
			Flags:   discord.MessageFlagEphemeral,
		})
	}
}
