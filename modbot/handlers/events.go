package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/events"
	"github.com/sukoonbot/sukoon/modbot/giveaway"
	"github.com/sukoonbot/sukoon/modbot/quarantine"
)

const eventTimeout = 10 * time.Second

// ReactionAddHandler records giveaway entries. Reaction events can replay or
// arrive out of order, the manager dedupes against the store.
func ReactionAddHandler(giveaways *giveaway.Manager) bot.EventListener {
	return bot.NewListenerFunc(func(e *events.GuildMessageReactionAdd) {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()

		emoji := ""
		if e.Emoji.Name != nil {
			emoji = *e.Emoji.Name
		}
		err := giveaways.HandleReactionAdd(ctx, e.MessageID, e.UserID, e.Member.User.Username, e.Member.User.Bot, emoji)
		if err != nil {
			slog.Error("Failed to handle reaction add",
				slog.String("type", "giveaway"),
				slog.String("message_id", e.MessageID.String()),
				slog.Any("error", err))
		}
	})
}

func ReactionRemoveHandler(giveaways *giveaway.Manager) bot.EventListener {
	return bot.NewListenerFunc(func(e *events.GuildMessageReactionRemove) {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()

		emoji := ""
		if e.Emoji.Name != nil {
			emoji = *e.Emoji.Name
		}
		if err := giveaways.HandleReactionRemove(ctx, e.MessageID, e.UserID, emoji); err != nil {
			slog.Error("Failed to handle reaction remove",
				slog.String("type", "giveaway"),
				slog.String("message_id", e.MessageID.String()),
				slog.Any("error", err))
		}
	})
}

// JailMessageHandler archives messages muted users post in the jail channel
// and removes ones that ping other members.
func JailMessageHandler(mutes *quarantine.Manager) bot.EventListener {
	return bot.NewListenerFunc(func(e *events.GuildMessageCreate) {
		if e.Message.Author.Bot || e.Message.Content == "" {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()

		removed, err := mutes.EnforceJailMentions(ctx, e.GuildID, e.ChannelID, e.MessageID, e.Message.Author.ID, len(e.Message.Mentions))
		if err != nil {
			slog.Error("Failed to enforce jail mentions",
				slog.String("type", "mute"),
				slog.String("guild_id", e.GuildID.String()),
				slog.Any("error", err))
		}
		if removed {
			return
		}

		err = mutes.RecordJailMessage(ctx, e.GuildID, e.ChannelID, e.MessageID, e.Message.Author.ID, e.Message.Author.Username, e.Message.Content)
		if err != nil {
			slog.Error("Failed to record jail message",
				slog.String("type", "mute"),
				slog.String("guild_id", e.GuildID.String()),
				slog.Any("error", err))
		}
	})
}
