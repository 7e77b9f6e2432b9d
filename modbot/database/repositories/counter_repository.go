package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

const (
	// CounterCaseNumber is the per-guild moderation case sequence.
	CounterCaseNumber = "case_number"

	counterMaxAttempts = 3
	counterRetryDelay  = 50 * time.Millisecond
)

type CounterRepository interface {
	Next(ctx context.Context, guildID snowflake.ID, name string) (int64, error)
	Current(ctx context.Context, guildID snowflake.ID, name string) (int64, error)
}

type counterRepository struct {
	db *bun.DB
}

func NewCounterRepository(db *bun.DB) CounterRepository {
	return &counterRepository{db: db}
}

// Next allocates the next value of a guild sequence. The upsert increments
// atomically so concurrent callers never see the same value, and a fresh
// guild starts at 1.
func (r *counterRepository) Next(ctx context.Context, guildID snowflake.ID, name string) (int64, error) {
	var lastErr error
	for attempt := 0; attempt < counterMaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(counterRetryDelay):
			}
		}

		var value int64
		err := r.db.NewRaw(
			`INSERT INTO guild_counters (guild_id, name, value) VALUES (?, ?, 1)
			 ON CONFLICT (guild_id, name) DO UPDATE SET value = guild_counters.value + 1
			 RETURNING value`,
			guildID, name,
		).Scan(ctx, &value)
		if err == nil {
			return value, nil
		}
		lastErr = err
	}
	return 0, fmt.Errorf("failed to allocate %s counter after %d attempts: %w", name, counterMaxAttempts, lastErr)
}

func (r *counterRepository) Current(ctx context.Context, guildID snowflake.ID, name string) (int64, error) {
	var value int64
	err := r.db.NewRaw(
		`SELECT COALESCE((SELECT value FROM guild_counters WHERE guild_id = ? AND name = ?), 0)`,
		guildID, name,
	).Scan(ctx, &value)
	if err != nil {
		return 0, err
	}
	return value, nil
}
