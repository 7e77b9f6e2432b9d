package giveaway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sukoonbot/sukoon/modbot/database/models"
	"github.com/sukoonbot/sukoon/modbot/database/repositories"
	"github.com/sukoonbot/sukoon/modbot/gateway"
)

func fillTaskName(messageID snowflake.ID) string {
	return "giveaway-fill:" + messageID.String()
}

// Fill starts a synthetic fill plan: count entries spread over the remaining
// lifetime of the giveaway at jittered intervals. Progress is persisted after
// every insert so a restart resumes where it stopped.
func (m *Manager) Fill(ctx context.Context, messageID snowflake.ID, count int) error {
	if count <= 0 || count > m.cfg.MaxFillCount {
		return fmt.Errorf("fill count must be between 1 and %d", m.cfg.MaxFillCount)
	}

	g, err := m.giveaways.GetByMessageID(ctx, messageID)
	if err != nil {
		return err
	}
	if !g.IsActive() {
		return ErrNotActive
	}
	if time.Until(g.EndTime) > m.cfg.MaxFillSpan {
		return fmt.Errorf("giveaway ends too far out to fill, max span is %s", m.cfg.MaxFillSpan)
	}

	plan := &models.FillPlan{
		MessageID: messageID,
		GuildID:   g.GuildID,
		Total:     count,
		Remaining: count,
		EndTime:   g.EndTime,
		Status:    models.FillPlanStatusActive,
	}
	if err := m.fillPlans.Create(ctx, plan); err != nil {
		return err
	}

	m.startFillTask(plan)
	return nil
}

// stopFill cancels the running task and marks the plan cancelled so nothing
// resumes it after a restart.
func (m *Manager) stopFill(ctx context.Context, messageID snowflake.ID) {
	m.supervisor.Stop(fillTaskName(messageID))
	cancelled, err := m.fillPlans.SetStatus(ctx, messageID, models.FillPlanStatusCancelled)
	if err != nil {
		slog.Error("Failed to cancel fill plan",
			slog.String("type", "giveaway"),
			slog.String("message_id", messageID.String()),
			slog.Any("error", err))
		return
	}
	if cancelled {
		slog.Info("Fill plan cancelled",
			slog.String("type", "giveaway"),
			slog.String("message_id", messageID.String()))
	}
}

// ResumeFillPlans restarts every persisted plan that is still worth running.
// Plans whose giveaway is gone or resolved are marked cancelled instead.
func (m *Manager) ResumeFillPlans(ctx context.Context) error {
	plans, err := m.fillPlans.GetActive(ctx)
	if err != nil {
		return err
	}

	resumed := 0
	for _, plan := range plans {
		g, err := m.giveaways.GetByMessageID(ctx, plan.MessageID)
		if err != nil && !errors.Is(err, repositories.ErrGiveawayNotFound) {
			slog.Error("Failed to load giveaway for fill plan",
				slog.String("type", "giveaway"),
				slog.String("message_id", plan.MessageID.String()),
				slog.Any("error", err))
			continue
		}
		if g == nil || !g.IsActive() || plan.EndTime.Before(time.Now()) {
			if _, err := m.fillPlans.SetStatus(ctx, plan.MessageID, models.FillPlanStatusCancelled); err != nil {
				slog.Error("Failed to cancel orphaned fill plan",
					slog.String("type", "giveaway"),
					slog.String("message_id", plan.MessageID.String()),
					slog.Any("error", err))
			}
			continue
		}
		m.startFillTask(plan)
		resumed++
	}

	if resumed > 0 {
		slog.Info("Resumed fill plans",
			slog.String("type", "giveaway"),
			slog.Int("count", resumed))
	}
	return nil
}

func (m *Manager) startFillTask(plan *models.FillPlan) {
	m.supervisor.Start(fillTaskName(plan.MessageID),
		fmt.Sprintf("synthetic fill for giveaway %s", plan.MessageID),
		func(ctx context.Context) {
			m.runFill(ctx, plan)
		})
}

func (m *Manager) runFill(ctx context.Context, plan *models.FillPlan) {
	members, err := m.listFillSources(ctx, plan.GuildID)
	if err != nil {
		slog.Error("Fill plan cannot load member pool",
			slog.String("type", "giveaway"),
			slog.String("message_id", plan.MessageID.String()),
			slog.Any("error", err))
		return
	}
	if len(members) == 0 {
		return
	}

	remaining := plan.Remaining
	for remaining > 0 {
		left := time.Until(plan.EndTime)
		if left <= 0 {
			break
		}

		// Average spacing is remaining time over remaining inserts,
		// jittered to ±50% so the cadence looks organic. Capped at the
		// time left so the final inserts land before the deadline.
		avg := left / time.Duration(remaining)
		delay := time.Duration(float64(avg) * (0.5 + m.jitter()))
		if delay > left {
			delay = left
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		g, err := m.giveaways.GetByMessageID(ctx, plan.MessageID)
		if err != nil || !g.IsActive() {
			// Stopping the task cancels our own ctx, so the status
			// write needs a context that outlives it.
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			m.stopFill(stopCtx, plan.MessageID)
			stopCancel()
			return
		}

		src := members[m.intn(len(members))]
		added, err := m.participants.Add(ctx, &models.Participant{
			MessageID:      plan.MessageID,
			UserID:         snowflake.New(time.Now()),
			Username:       src.Username,
			IsSynthetic:    true,
			OriginalUserID: src.ID,
		})
		if err != nil {
			slog.Error("Fill insert failed",
				slog.String("type", "giveaway"),
				slog.String("message_id", plan.MessageID.String()),
				slog.Any("error", err))
			continue
		}
		if !added {
			continue
		}

		remaining, err = m.fillPlans.DecrementRemaining(ctx, plan.ID)
		if err != nil {
			slog.Error("Failed to persist fill progress",
				slog.String("type", "giveaway"),
				slog.String("message_id", plan.MessageID.String()),
				slog.Any("error", err))
			return
		}
		if remaining < 0 {
			// Plan was cancelled out from under us.
			return
		}
	}

	if remaining == 0 {
		if _, err := m.fillPlans.SetStatus(ctx, plan.MessageID, models.FillPlanStatusCompleted); err != nil {
			slog.Error("Failed to complete fill plan",
				slog.String("type", "giveaway"),
				slog.String("message_id", plan.MessageID.String()),
				slog.Any("error", err))
		}
	}

	slog.Info("Fill plan finished",
		slog.String("type", "giveaway"),
		slog.String("message_id", plan.MessageID.String()),
		slog.Int("remaining", remaining))
}

// listFillSources returns real, non-bot members to clone usernames from.
func (m *Manager) listFillSources(ctx context.Context, guildID snowflake.ID) ([]gateway.Member, error) {
	members, err := m.client.ListMembers(ctx, guildID, 1000)
	if err != nil {
		return nil, err
	}
	out := members[:0]
	for _, member := range members {
		if !member.IsBot {
			out = append(out, member)
		}
	}
	return out, nil
}
