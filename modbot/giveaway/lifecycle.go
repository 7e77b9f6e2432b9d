package giveaway

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
	"github.com/sukoonbot/sukoon/modbot/gateway"
)

const (
	transientAttempts = 3
	transientBackoff  = 500 * time.Millisecond
)

// lockCase serializes terminal transitions per giveaway so the scheduler
// racing a manual end produces exactly one winner draw and one notification
// batch. The store guard is still the final arbiter across processes.
func (m *Manager) lockCase(messageID snowflake.ID) func() {
	muIface, _ := m.caseLocks.LoadOrStore(messageID, &sync.Mutex{})
	mu := muIface.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// End resolves an active giveaway: draws winners, notifies them best-effort,
// persists the outcome last and then updates the announcement message. A
// giveaway that already resolved is a no-op.
func (m *Manager) End(ctx context.Context, messageID snowflake.ID, by snowflake.ID) error {
	unlock := m.lockCase(messageID)
	defer unlock()

	g, err := m.giveaways.GetByMessageID(ctx, messageID)
	if err != nil {
		return err
	}
	if g.Status != models.GiveawayStatusActive && g.Status != models.GiveawayStatusError {
		return ErrAlreadyResolved
	}

	// Stop any synthetic fill still running for this giveaway.
	m.stopFill(ctx, messageID)

	entries, err := m.participants.List(ctx, messageID)
	if err != nil {
		return err
	}

	forced, pool := m.partition(entries, nil)
	winners := m.draw(g.WinnerCount, forced, pool)
	winners, remaining := m.verifyWinners(ctx, g.GuildID, winners, poolMinus(pool, winners))

	// One bounded backfill round for candidates who left the guild.
	if len(winners) < min(g.WinnerCount, len(forced)+len(pool)) && len(remaining) > 0 {
		refill := m.draw(g.WinnerCount-len(winners), nil, remaining)
		refill, _ = m.verifyWinners(ctx, g.GuildID, refill, nil)
		winners = append(winners, refill...)
	}

	m.notifyWinners(ctx, g, winners)

	poolSize := len(forced) + len(pool)
	claimed, err := m.giveaways.MarkEnded(ctx, messageID, toInt64s(winners), poolSize, by)
	if err != nil {
		return err
	}
	if !claimed {
		return ErrAlreadyResolved
	}

	if err := m.client.EditMessage(ctx, gateway.MessageRef{ChannelID: g.ChannelID, MessageID: g.MessageID}, endedMessage(g, winners, poolSize)); err != nil {
		slog.Warn("Failed to update ended giveaway message",
			slog.String("type", "giveaway"),
			slog.String("message_id", messageID.String()),
			slog.Any("error", err))
	}

	slog.Info("Giveaway ended",
		slog.String("type", "giveaway"),
		slog.String("message_id", messageID.String()),
		slog.Int("pool_size", poolSize),
		slog.Int("winners", len(winners)))
	return nil
}

// Cancel aborts an active giveaway without drawing winners. Any in-flight
// fill plan is cancelled first so no synthetic rows land after the fact.
func (m *Manager) Cancel(ctx context.Context, messageID snowflake.ID, by snowflake.ID, reason string) error {
	unlock := m.lockCase(messageID)
	defer unlock()

	g, err := m.giveaways.GetByMessageID(ctx, messageID)
	if err != nil {
		return err
	}
	if g.Status != models.GiveawayStatusActive && g.Status != models.GiveawayStatusError {
		return ErrAlreadyResolved
	}

	m.stopFill(ctx, messageID)

	claimed, err := m.giveaways.MarkCancelled(ctx, messageID, reason, by)
	if err != nil {
		return err
	}
	if !claimed {
		return ErrAlreadyResolved
	}

	ref := gateway.MessageRef{ChannelID: g.ChannelID, MessageID: g.MessageID}
	if err := m.client.ClearReactions(ctx, ref); err != nil {
		slog.Warn("Failed to clear reactions on cancelled giveaway",
			slog.String("type", "giveaway"),
			slog.String("message_id", messageID.String()),
			slog.Any("error", err))
	}
	if err := m.client.EditMessage(ctx, ref, cancelledMessage(g, reason)); err != nil {
		slog.Warn("Failed to update cancelled giveaway message",
			slog.String("type", "giveaway"),
			slog.String("message_id", messageID.String()),
			slog.Any("error", err))
	}

	slog.Info("Giveaway cancelled",
		slog.String("type", "giveaway"),
		slog.String("message_id", messageID.String()),
		slog.String("reason", reason))
	return nil
}

// Reroll draws a fresh winner set for an ended giveaway from participants
// never selected before. Status does not change.
func (m *Manager) Reroll(ctx context.Context, messageID snowflake.ID) ([]snowflake.ID, error) {
	unlock := m.lockCase(messageID)
	defer unlock()

	g, err := m.giveaways.GetByMessageID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if g.Status != models.GiveawayStatusEnded {
		return nil, ErrNotEnded
	}

	entries, err := m.participants.List(ctx, messageID)
	if err != nil {
		return nil, err
	}

	exclude := make(map[snowflake.ID]bool, len(g.DrawnIDs))
	for _, id := range g.DrawnIDs {
		exclude[snowflake.ID(id)] = true
	}

	_, pool := m.partition(entries, exclude)
	if len(pool) == 0 {
		return nil, fmt.Errorf("no eligible participants left to reroll")
	}

	winners := m.draw(g.WinnerCount, nil, pool)
	winners, remaining := m.verifyWinners(ctx, g.GuildID, winners, poolMinus(pool, winners))
	if len(winners) < min(g.WinnerCount, len(pool)) && len(remaining) > 0 {
		refill := m.draw(g.WinnerCount-len(winners), nil, remaining)
		refill, _ = m.verifyWinners(ctx, g.GuildID, refill, nil)
		winners = append(winners, refill...)
	}
	if len(winners) == 0 {
		return nil, fmt.Errorf("no eligible participants left to reroll")
	}

	m.notifyWinners(ctx, g, winners)

	if err := m.giveaways.SetWinners(ctx, messageID, toInt64s(winners)); err != nil {
		return nil, err
	}

	slog.Info("Giveaway rerolled",
		slog.String("type", "giveaway"),
		slog.String("message_id", messageID.String()),
		slog.Int("winners", len(winners)))
	return winners, nil
}

// partition splits entries into forced seeds and the random pool. The bot's
// own account never counts, and a member with both a real and a synthetic
// entry counts once.
func (m *Manager) partition(entries []*models.Participant, exclude map[snowflake.ID]bool) (forced, pool []snowflake.ID) {
	botID := m.client.BotUserID()
	seen := make(map[snowflake.ID]bool, len(entries))

	for _, p := range entries {
		id := p.DrawID()
		if id == botID || seen[id] || exclude[id] {
			continue
		}
		seen[id] = true
		if p.IsForced {
			forced = append(forced, id)
		} else {
			pool = append(pool, id)
		}
	}
	return forced, pool
}

// draw seeds the winner set with forced entries capped at count, then fills
// the rest by uniform sampling without replacement.
func (m *Manager) draw(count int, forced, pool []snowflake.ID) []snowflake.ID {
	if count <= 0 {
		return nil
	}

	winners := make([]snowflake.ID, 0, count)
	for _, id := range forced {
		if len(winners) == count {
			break
		}
		winners = append(winners, id)
	}

	slots := count - len(winners)
	if slots <= 0 || len(pool) == 0 {
		return winners
	}

	shuffled := make([]snowflake.ID, len(pool))
	copy(shuffled, pool)
	m.shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if slots > len(shuffled) {
		slots = len(shuffled)
	}
	return append(winners, shuffled[:slots]...)
}

// verifyWinners drops candidates who are no longer guild members and returns
// the survivors plus the untouched remainder of the pool for one backfill
// round. Transient lookup failures keep the candidate rather than dropping a
// valid winner over a rate limit.
func (m *Manager) verifyWinners(ctx context.Context, guildID snowflake.ID, candidates, rest []snowflake.ID) ([]snowflake.ID, []snowflake.ID) {
	verified := make([]snowflake.ID, 0, len(candidates))
	for _, id := range candidates {
		err := retryTransient(ctx, func() error {
			_, err := m.client.GetMember(ctx, guildID, id)
			return err
		})
		if errors.Is(err, gateway.ErrNotFound) {
			slog.Debug("Dropping winner who left the guild",
				slog.String("type", "giveaway"),
				slog.String("user_id", id.String()))
			continue
		}
		verified = append(verified, id)
	}
	return verified, rest
}

func (m *Manager) notifyWinners(ctx context.Context, g *models.Giveaway, winners []snowflake.ID) {
	for _, id := range winners {
		_, err := m.client.SendDirectMessage(ctx, id, winnerDM(g))
		if err != nil {
			slog.Debug("Failed to notify giveaway winner",
				slog.String("type", "giveaway"),
				slog.String("user_id", id.String()),
				slog.Any("error", err))
		}
	}
}

func retryTransient(ctx context.Context, fn func() error) error {
	var err error
	backoff := transientBackoff
	for attempt := 0; attempt < transientAttempts; attempt++ {
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

func poolMinus(pool, used []snowflake.ID) []snowflake.ID {
	usedSet := make(map[snowflake.ID]bool, len(used))
	for _, id := range used {
		usedSet[id] = true
	}
	var rest []snowflake.ID
	for _, id := range pool {
		if !usedSet[id] {
			rest = append(rest, id)
		}
	}
	return rest
}

func toInt64s(ids []snowflake.ID) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

func mentionList(ids []snowflake.ID) string {
	if len(ids) == 0 {
		return "No valid winners"
	}
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("<@%d>", id)
	}
	return out
}

func endedMessage(g *models.Giveaway, winners []snowflake.ID, poolSize int) discord.MessageUpdate {
	embed := discord.NewEmbedBuilder().
		SetTitle("🎉 Giveaway Ended: " + g.Prize).
		SetDescriptionf("**Winners:** %s\n**Entries:** %d\n**Hosted by:** <@%d>", mentionList(winners), poolSize, g.HostID).
		SetColor(0x57F287).
		Build()
	return discord.MessageUpdate{Embeds: &[]discord.Embed{embed}}
}

func cancelledMessage(g *models.Giveaway, reason string) discord.MessageUpdate {
	if reason == "" {
		reason = "No reason given"
	}
	embed := discord.NewEmbedBuilder().
		SetTitle("Giveaway Cancelled: " + g.Prize).
		SetDescriptionf("**Reason:** %s", reason).
		SetColor(0xED4245).
		Build()
	content := ""
	return discord.MessageUpdate{Content: &content, Embeds: &[]discord.Embed{embed}}
}

func winnerDM(g *models.Giveaway) discord.MessageCreate {
	return discord.NewMessageCreateBuilder().
		SetContentf("🎉 You won **%s**! https://discord.com/channels/%d/%d/%d", g.Prize, g.GuildID, g.ChannelID, g.MessageID).
		Build()
}
