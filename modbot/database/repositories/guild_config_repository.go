package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/disgoorg/snowflake/v2"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sukoonbot/sukoon/modbot/database/models"
	"github.com/uptrace/bun"
)

const (
	guildConfigCacheSize   = 1000
	guildConfigCacheExpiry = 5 * time.Minute
)

type GuildConfigRepository interface {
	Get(ctx context.Context, guildID snowflake.ID) (*models.GuildConfig, error)
	Upsert(ctx context.Context, c *models.GuildConfig) error
	Invalidate(guildID snowflake.ID)
}

type guildConfigRepository struct {
	db    *bun.DB
	cache *lru.Cache
}

type cachedGuildConfig struct {
	config    *models.GuildConfig
	timestamp time.Time
}

func NewGuildConfigRepository(db *bun.DB) GuildConfigRepository {
	cache, _ := lru.New(guildConfigCacheSize)
	return &guildConfigRepository{db: db, cache: cache}
}

// Get returns the guild config, or nil when the guild was never set up.
func (r *guildConfigRepository) Get(ctx context.Context, guildID snowflake.ID) (*models.GuildConfig, error) {
	if entry, ok := r.cache.Get(guildID); ok {
		cached := entry.(cachedGuildConfig)
		if time.Since(cached.timestamp) < guildConfigCacheExpiry {
			return cached.config, nil
		}
		r.cache.Remove(guildID)
	}

	c := new(models.GuildConfig)
	err := r.db.NewSelect().
		Model(c).
		Where("guild_id = ?", guildID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	r.cache.Add(guildID, cachedGuildConfig{config: c, timestamp: time.Now()})
	return c, nil
}

func (r *guildConfigRepository) Upsert(ctx context.Context, c *models.GuildConfig) error {
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	_, err := r.db.NewInsert().
		Model(c).
		On("CONFLICT (guild_id) DO UPDATE").
		Set("mute_role_id = EXCLUDED.mute_role_id").
		Set("jail_channel_id = EXCLUDED.jail_channel_id").
		Set("log_channel_id = EXCLUDED.log_channel_id").
		Set("appeal_channel_id = EXCLUDED.appeal_channel_id").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return err
	}

	r.cache.Remove(c.GuildID)
	return nil
}

func (r *guildConfigRepository) Invalidate(guildID snowflake.ID) {
	r.cache.Remove(guildID)
}
