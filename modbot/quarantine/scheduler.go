package quarantine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sukoonbot/sukoon/modbot/database/models"
)

// StartScheduler runs the reconciliation loop: expired mutes are lifted and
// stale pending appeals are closed out. Single-flight, a tick that fires
// while the previous scan is still running is skipped.
func (m *Manager) StartScheduler() {
	m.supervisor.Start("quarantine-scheduler", "lifts expired mutes", func(ctx context.Context) {
		ticker := time.NewTicker(m.cfg.TickInterval)
		defer ticker.Stop()

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

	now := time.Now()

	expired, err := m.mutes.ListExpired(ctx, now)
	if err != nil {
		// Store unreachable: skip the cycle, the next tick retries.
		slog.Error("Mute scan failed",
			slog.String("type", "loop"),
			slog.Any("error", err))
		return
	}

	for _, mute := range expired {
		err := m.Lift(ctx, mute, models.MuteStatusExpired, m.client.BotUserID(), "mute duration elapsed")
		switch {
		case err == nil, errors.Is(err, ErrAlreadyLifted):
		case errors.Is(err, context.Canceled):
			return
		default:
			slog.Error("Failed to lift expired mute",
				slog.String("type", "loop"),
				slog.Int64("case", mute.CaseNumber),
				slog.Any("error", err))
			if markErr := m.mutes.MarkError(ctx, mute.ID, err.Error()); markErr != nil {
				slog.Error("Failed to mark mute errored",
					slog.String("type", "loop"),
					slog.Int64("case", mute.CaseNumber),
					slog.Any("error", markErr))
			}
		}
	}

	m.expireStaleAppeals(ctx, now)
}

func (m *Manager) expireStaleAppeals(ctx context.Context, now time.Time) {
	stale, err := m.appeals.ListStale(ctx, now.Add(-m.cfg.AppealReviewTimeout))
	if err != nil {
		slog.Error("Appeal scan failed",
			slog.String("type", "loop"),
			slog.Any("error", err))
		return
	}

	for _, appeal := range stale {
		closed, err := m.appeals.Review(ctx, appeal.ID, models.AppealStatusExpired, m.client.BotUserID(), "no review within the window")
		if err != nil {
			slog.Error("Failed to expire stale appeal",
				slog.String("type", "loop"),
				slog.Int64("appeal_id", appeal.ID),
				slog.Any("error", err))
			continue
		}
		if closed {
			slog.Info("Stale appeal closed",
				slog.String("type", "loop"),
				slog.Int64("appeal_id", appeal.ID),
				slog.String("guild_id", appeal.GuildID.String()))
		}
	}
}
