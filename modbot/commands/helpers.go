package commands

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/sukoonbot/sukoon/modbot/utils"
)

func replyError(e *handler.CommandEvent, message string) error {
	return e.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{{
			Description: "❌ " + message,
			Color:       utils.ErrorColor,
		}},
		Flags: discord.MessageFlagEphemeral,
	})
}

func replySuccess(e *handler.CommandEvent, message string, ephemeral bool) error {
	var flags discord.MessageFlags
	if ephemeral {
		flags = discord.MessageFlagEphemeral
	}
	return e.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{{
			Description: "✅ " + message,
			Color:       utils.SuccessColor,
		}},
		Flags: flags,
	})
}
