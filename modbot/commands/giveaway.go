package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sukoonbot/sukoon/modbot"
	"github.com/sukoonbot/sukoon/modbot/database/repositories"
	"github.com/sukoonbot/sukoon/modbot/giveaway"
	"github.com/sukoonbot/sukoon/modbot/utils"
)

var Giveaway = discord.SlashCommandCreate{
	Name:        "giveaway",
	Description: "🎉 Start a giveaway in this channel",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:        "prize",
			Description: "What is being given away",
			Required:    true,
		},
		discord.ApplicationCommandOptionInt{
			Name:        "winners",
			Description: "How many winners to draw",
			Required:    true,
		},
		discord.ApplicationCommandOptionString{
			Name:        "duration",
			Description: "How long the giveaway runs (e.g. 30s, 1h30m, 2d)",
			Required:    true,
		},
	},
}

var Reroll = discord.SlashCommandCreate{
	Name:        "reroll",
	Description: "Draw new winners for an ended giveaway",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:        "message_id",
			Description: "Message id of the giveaway",
			Required:    true,
		},
	},
}

var FillGiveaway = discord.SlashCommandCreate{
	Name:        "fill-giveaway",
	Description: "Fill a giveaway with synthetic entries over its remaining time",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:        "message_id",
			Description: "Message id of the giveaway",
			Required:    true,
		},
		discord.ApplicationCommandOptionInt{
			Name:        "count",
			Description: "How many entries to add",
			Required:    true,
		},
	},
}

var ForceWinner = discord.SlashCommandCreate{
	Name:        "force-winner",
	Description: "Guarantee a user wins a giveaway",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:        "message_id",
			Description: "Message id of the giveaway",
			Required:    true,
		},
		discord.ApplicationCommandOptionUser{
			Name:        "user",
			Description: "The guaranteed winner",
			Required:    true,
		},
	},
}

var CancelGiveaway = discord.SlashCommandCreate{
	Name:        "cancel-giveaway",
	Description: "Cancel an active giveaway without drawing winners",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:        "message_id",
			Description: "Message id of the giveaway",
			Required:    true,
		},
		discord.ApplicationCommandOptionString{
			Name:        "reason",
			Description: "Why the giveaway is being cancelled",
			Required:    false,
		},
	},
}

var GiveawayStats = discord.SlashCommandCreate{
	Name:        "giveaway-stats",
	Description: "Giveaway totals for this server",
}

func GiveawayHandler(b *modbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		data := e.SlashCommandInteractionData()

		duration, err := utils.ParseDuration(data.String("duration"))
		if err != nil {
			return replyError(e, "Invalid duration: "+err.Error())
		}

		ctx, cancel := context.WithTimeout(context.Background(), utils.DefaultQueryTimeout)
		defer cancel()

		g, err := b.Giveaways.Create(ctx, giveaway.CreateParams{
			GuildID:     *e.GuildID(),
			ChannelID:   e.Channel().ID(),
			HostID:      e.User().ID,
			Prize:       data.String("prize"),
			WinnerCount: data.Int("winners"),
			Duration:    duration,
		})
		if err != nil {
			switch {
			case errors.Is(err, giveaway.ErrInvalidDuration):
				return replyError(e, "Duration is out of range.")
			case errors.Is(err, giveaway.ErrInvalidWinners):
				return replyError(e, "Winner count is out of range.")
			default:
				return replyError(e, "Failed to start the giveaway.")
			}
		}

		return replySuccess(e, fmt.Sprintf("Giveaway for **%s** started, ends <t:%d:R>.", g.Prize, g.EndTime.Unix()), true)
	}
}

func RerollHandler(b *modbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		messageID, err := parseMessageID(e.SlashCommandInteractionData().String("message_id"))
		if err != nil {
			return replyError(e, "That is not a valid message id.")
		}

		ctx, cancel := context.WithTimeout(context.Background(), utils.DefaultQueryTimeout)
		defer cancel()

		winners, err := b.Giveaways.Reroll(ctx, messageID)
		if err != nil {
			switch {
			case errors.Is(err, repositories.ErrGiveawayNotFound):
				return replyError(e, "No giveaway found for that message.")
			case errors.Is(err, giveaway.ErrNotEnded):
				return replyError(e, "That giveaway has not ended yet.")
			default:
				return replyError(e, "Reroll failed: "+err.Error())
			}
		}

		return replySuccess(e, "New winners: "+mentionList(winners), false)
	}
}

func FillGiveawayHandler(b *modbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		data := e.SlashCommandInteractionData()
		messageID, err := parseMessageID(data.String("message_id"))
		if err != nil {
			return replyError(e, "That is not a valid message id.")
		}

		ctx, cancel := context.WithTimeout(context.Background(), utils.DefaultQueryTimeout)
		defer cancel()

		if err := b.Giveaways.Fill(ctx, messageID, data.Int("count")); err != nil {
			switch {
			case errors.Is(err, repositories.ErrGiveawayNotFound):
				return replyError(e, "No giveaway found for that message.")
			case errors.Is(err, giveaway.ErrNotActive):
				return replyError(e, "That giveaway is no longer active.")
			case errors.Is(err, repositories.ErrFillPlanExists):
				return replyError(e, "That giveaway already has a fill plan.")
			default:
				return replyError(e, err.Error())
			}
		}

		return replySuccess(e, fmt.Sprintf("Filling with %d entries until the giveaway ends.", data.Int("count")), true)
	}
}

func ForceWinnerHandler(b *modbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		data := e.SlashCommandInteractionData()
		messageID, err := parseMessageID(data.String("message_id"))
		if err != nil {
			return replyError(e, "That is not a valid message id.")
		}
		user := data.User("user")

		ctx, cancel := context.WithTimeout(context.Background(), utils.DefaultQueryTimeout)
		defer cancel()

		if err := b.Giveaways.ForceWinner(ctx, messageID, user.ID, user.Username); err != nil {
			switch {
			case errors.Is(err, repositories.ErrGiveawayNotFound):
				return replyError(e, "No giveaway found for that message.")
			case errors.Is(err, giveaway.ErrNotActive):
				return replyError(e, "That giveaway is no longer active.")
			default:
				return replyError(e, "Failed to register the forced winner.")
			}
		}

		return replySuccess(e, fmt.Sprintf("%s is guaranteed to win.", user.Mention()), true)
	}
}

func CancelGiveawayHandler(b *modbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		data := e.SlashCommandInteractionData()
		messageID, err := parseMessageID(data.String("message_id"))
		if err != nil {
			return replyError(e, "That is not a valid message id.")
		}
		reason, _ := data.OptString("reason")

		ctx, cancel := context.WithTimeout(context.Background(), utils.DefaultQueryTimeout)
		defer cancel()

		if err := b.Giveaways.Cancel(ctx, messageID, e.User().ID, reason); err != nil {
			switch {
			case errors.Is(err, repositories.ErrGiveawayNotFound):
				return replyError(e, "No giveaway found for that message.")
			case errors.Is(err, giveaway.ErrAlreadyResolved):
				return replyError(e, "That giveaway was already resolved.")
			default:
				return replyError(e, "Failed to cancel the giveaway.")
			}
		}

		return replySuccess(e, "Giveaway cancelled.", true)
	}
}

func GiveawayStatsHandler(b *modbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), utils.DefaultQueryTimeout)
		defer cancel()

		stats, err := b.Giveaways.Stats(ctx, *e.GuildID())
		if err != nil {
			return replyError(e, "Failed to load giveaway stats.")
		}

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{{
				Title: "🎉 Giveaway Stats",
				Description: fmt.Sprintf("**Active:** %d\n**Total:** %d\n**Entries:** %d",
					stats.ActiveGiveaways, stats.TotalGiveaways, stats.TotalEntries),
				Color: utils.InfoColor,
			}},
		})
	}
}

func parseMessageID(raw string) (snowflake.ID, error) {
	return snowflake.Parse(strings.TrimSpace(raw))
}

func mentionList(ids []snowflake.ID) string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = fmt.Sprintf("<@%d>", id)
	}
	return strings.Join(out, ", ")
}
