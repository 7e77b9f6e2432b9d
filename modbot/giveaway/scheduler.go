package giveaway

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// StartScheduler runs the reconciliation loop: every tick it ends giveaways
// whose deadline elapsed. Ticks are single-flight, a tick firing while the
// previous scan still runs is skipped.
func (m *Manager) StartScheduler() {
	m.supervisor.Start("giveaway-scheduler", "ends giveaways whose deadline has passed", func(ctx context.Context) {
		ticker := time.NewTicker(m.cfg.TickInterval)
		defer ticker.Stop()

		// Resolve anything that came due while the process was down
		// before the first interval elapses.
		m.tick(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.tick(ctx)
			}
		}
	})
}

func (m *Manager) tick(ctx context.Context) {
	if !m.tickMu.TryLock() {
		return
	}
	defer m.tickMu.Unlock()

	due, err := m.giveaways.GetDue(ctx, time.Now())
	if err != nil {
		// Store unreachable: skip the cycle, the next tick retries.
		slog.Error("Giveaway scan failed",
			slog.String("type", "loop"),
			slog.Any("error", err))
		return
	}

	for _, g := range due {
		err := m.End(ctx, g.MessageID, m.client.BotUserID())
		switch {
		case err == nil, errors.Is(err, ErrAlreadyResolved):
		case errors.Is(err, context.Canceled):
			return
		default:
			// One bad giveaway must not abort the batch. Persist the
			// failure so it stops being re-picked every tick and stays
			// inspectable for an admin retrigger.
			slog.Error("Failed to end giveaway",
				slog.String("type", "loop"),
				slog.String("message_id", g.MessageID.String()),
				slog.Any("error", err))
			if markErr := m.giveaways.MarkError(ctx, g.MessageID, err.Error()); markErr != nil {
				slog.Error("Failed to mark giveaway errored",
					slog.String("type", "loop"),
					slog.String("message_id", g.MessageID.String()),
					slog.Any("error", markErr))
			}
		}
	}
}
