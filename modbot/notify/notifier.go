// Package notify sends direct messages that delete themselves after a delay.
// The delete obligation is persisted, so a process restart picks it up
// instead of leaving the message behind forever.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sukoonbot/sukoon/modbot/database/models"
	"github.com/sukoonbot/sukoon/modbot/database/repositories"
	"github.com/sukoonbot/sukoon/modbot/gateway"
	"github.com/sukoonbot/sukoon/modbot/tasks"
)

type Notifier struct {
	pending    repositories.PendingDeleteRepository
	client     gateway.Client
	supervisor *tasks.Supervisor
}

func New(pending repositories.PendingDeleteRepository, client gateway.Client, supervisor *tasks.Supervisor) *Notifier {
	return &Notifier{
		pending:    pending,
		client:     client,
		supervisor: supervisor,
	}
}

// SendSelfDestructing DMs the user and schedules the message for deletion
// after the given delay. Returns gateway.ErrBlocked when the user has DMs
// disabled; callers treat that as best-effort.
func (n *Notifier) SendSelfDestructing(ctx context.Context, userID snowflake.ID, msg discord.MessageCreate, deleteAfter time.Duration) error {
	ref, err := n.client.SendDirectMessage(ctx, userID, msg)
	if err != nil {
		return err
	}

	rec := &models.PendingDMDelete{
		UserID:    userID,
		MessageID: ref.MessageID,
		DeleteAt:  time.Now().Add(deleteAfter),
	}
	if err := n.pending.Create(ctx, rec); err != nil {
		// The message is out either way; still delete it on time, just
		// without restart protection.
		slog.Error("Failed to persist DM delete obligation",
			slog.String("type", "sys"),
			slog.String("user_id", userID.String()),
			slog.Any("error", err))
	}

	n.schedule(rec)
	return nil
}

// Recover reloads every persisted obligation: overdue ones execute
// immediately, future ones are rescheduled for their remaining interval.
func (n *Notifier) Recover(ctx context.Context) error {
	pending, err := n.pending.ListAll(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	overdue := 0
	for _, rec := range pending {
		if !rec.DeleteAt.After(now) {
			n.execute(ctx, rec)
			overdue++
			continue
		}
		n.schedule(rec)
	}

	slog.Info("Recovered DM delete obligations",
		slog.String("type", "sys"),
		slog.Int("total", len(pending)),
		slog.Int("overdue", overdue))
	return nil
}

func (n *Notifier) schedule(rec *models.PendingDMDelete) {
	name := fmt.Sprintf("dm-delete:%s", rec.MessageID)
	n.supervisor.Start(name, fmt.Sprintf("self-destruct DM for user %s", rec.UserID), func(ctx context.Context) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(rec.DeleteAt)):
		}
		n.execute(ctx, rec)
	})
}

func (n *Notifier) execute(ctx context.Context, rec *models.PendingDMDelete) {
	err := n.client.DeleteDirectMessage(ctx, rec.UserID, rec.MessageID)
	if err != nil && !errors.Is(err, gateway.ErrNotFound) {
		slog.Warn("Failed to delete self-destruct DM",
			slog.String("type", "sys"),
			slog.String("user_id", rec.UserID.String()),
			slog.String("message_id", rec.MessageID.String()),
			slog.Any("error", err))
	}
	if err := n.pending.Delete(ctx, rec.ID); err != nil {
		slog.Error("Failed to drop DM delete obligation",
			slog.String("type", "sys"),
			slog.Int64("id", rec.ID),
			slog.Any("error", err))
	}
}
