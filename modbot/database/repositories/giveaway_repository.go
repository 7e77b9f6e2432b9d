package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sukoonbot/sukoon/modbot/database/models"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

var (
	ErrGiveawayNotFound = errors.New("giveaway not found")
	ErrGiveawayInactive = errors.New("giveaway is not active")
)

type GiveawayRepository interface {
	Create(ctx context.Context, g *models.Giveaway) error
	GetByMessageID(ctx context.Context, messageID snowflake.ID) (*models.Giveaway, error)
	GetDue(ctx context.Context, now time.Time) ([]*models.Giveaway, error)
	GetActiveByGuild(ctx context.Context, guildID snowflake.ID) ([]*models.Giveaway, error)
	GetByGuild(ctx context.Context, guildID snowflake.ID, limit int) ([]*models.Giveaway, error)
	MarkEnded(ctx context.Context, messageID snowflake.ID, winnerIDs []int64, participantCount int, by snowflake.ID) (bool, error)
	MarkCancelled(ctx context.Context, messageID snowflake.ID, reason string, by snowflake.ID) (bool, error)
	MarkError(ctx context.Context, messageID snowflake.ID, detail string) error
	SetWinners(ctx context.Context, messageID snowflake.ID, winnerIDs []int64) error
	CountByGuild(ctx context.Context, guildID snowflake.ID) (active int, total int, err error)
}

type giveawayRepository struct {
	db *bun.DB
}

func NewGiveawayRepository(db *bun.DB) GiveawayRepository {
	return &giveawayRepository{db: db}
}

func (r *giveawayRepository) Create(ctx context.Context, g *models.Giveaway) error {
	now := time.Now()
	g.CreatedAt = now
	g.UpdatedAt = now
	_, err := r.db.NewInsert().Model(g).Exec(ctx)
	return err
}

func (r *giveawayRepository) GetByMessageID(ctx context.Context, messageID snowflake.ID) (*models.Giveaway, error) {
	g := new(models.Giveaway)
	err := r.db.NewSelect().
		Model(g).
		Where("message_id = ?", messageID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGiveawayNotFound
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (r *giveawayRepository) GetDue(ctx context.Context, now time.Time) ([]*models.Giveaway, error) {
	var giveaways []*models.Giveaway
	err := r.db.NewSelect().
		Model(&giveaways).
		Where("status = ?", models.GiveawayStatusActive).
		Where("end_time <= ?", now).
		Order("end_time ASC").
		Scan(ctx)
	return giveaways, err
}

func (r *giveawayRepository) GetActiveByGuild(ctx context.Context, guildID snowflake.ID) ([]*models.Giveaway, error) {
	var giveaways []*models.Giveaway
	err := r.db.NewSelect().
		Model(&giveaways).
		Where("guild_id = ?", guildID).
		Where("status = ?", models.GiveawayStatusActive).
		Order("end_time ASC").
		Scan(ctx)
	return giveaways, err
}

func (r *giveawayRepository) GetByGuild(ctx context.Context, guildID snowflake.ID, limit int) ([]*models.Giveaway, error) {
	var giveaways []*models.Giveaway
	err := r.db.NewSelect().
		Model(&giveaways).
		Where("guild_id = ?", guildID).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	return giveaways, err
}

// MarkEnded flips an active giveaway to ended and records the draw. The
// status guard makes concurrent enders race safely, only one caller gets
// true back. An errored giveaway can be re-ended by an explicit admin
// retrigger, the loop itself only ever sees active rows.
func (r *giveawayRepository) MarkEnded(ctx context.Context, messageID snowflake.ID, winnerIDs []int64, participantCount int, by snowflake.ID) (bool, error) {
	now := time.Now()
	res, err := r.db.NewUpdate().
		Model((*models.Giveaway)(nil)).
		Set("status = ?", models.GiveawayStatusEnded).
		Set("winner_ids = ?", pgdialect.Array(winnerIDs)).
		Set("drawn_ids = drawn_ids || ?", pgdialect.Array(winnerIDs)).
		Set("participant_count = ?", participantCount).
		Set("last_error = ''").
		Set("resolved_by = ?", by).
		Set("resolved_at = ?", now).
		Set("updated_at = ?", now).
		Where("message_id = ?", messageID).
		Where("status IN (?, ?)", models.GiveawayStatusActive, models.GiveawayStatusError).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *giveawayRepository) MarkCancelled(ctx context.Context, messageID snowflake.ID, reason string, by snowflake.ID) (bool, error) {
	now := time.Now()
	res, err := r.db.NewUpdate().
		Model((*models.Giveaway)(nil)).
		Set("status = ?", models.GiveawayStatusCancelled).
		Set("cancel_reason = ?", reason).
		Set("resolved_by = ?", by).
		Set("resolved_at = ?", now).
		Set("updated_at = ?", now).
		Where("message_id = ?", messageID).
		Where("status IN (?, ?)", models.GiveawayStatusActive, models.GiveawayStatusError).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *giveawayRepository) MarkError(ctx context.Context, messageID snowflake.ID, detail string) error {
	now := time.Now()
	_, err := r.db.NewUpdate().
		Model((*models.Giveaway)(nil)).
		Set("status = ?", models.GiveawayStatusError).
		Set("last_error = ?", detail).
		Set("resolved_at = ?", now).
		Set("updated_at = ?", now).
		Where("message_id = ?", messageID).
		Where("status = ?", models.GiveawayStatusActive).
		Exec(ctx)
	return err
}

// SetWinners replaces the current winner set and appends it to the drawn
// history. Used by rerolls after the giveaway has ended.
func (r *giveawayRepository) SetWinners(ctx context.Context, messageID snowflake.ID, winnerIDs []int64) error {
	res, err := r.db.NewUpdate().
		Model((*models.Giveaway)(nil)).
		Set("winner_ids = ?", pgdialect.Array(winnerIDs)).
		Set("drawn_ids = drawn_ids || ?", pgdialect.Array(winnerIDs)).
		Set("updated_at = ?", time.Now()).
		Where("message_id = ?", messageID).
		Where("status = ?", models.GiveawayStatusEnded).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrGiveawayInactive
	}
	return nil
}

func (r *giveawayRepository) CountByGuild(ctx context.Context, guildID snowflake.ID) (int, int, error) {
	total, err := r.db.NewSelect().
		Model((*models.Giveaway)(nil)).
		Where("guild_id = ?", guildID).
		Count(ctx)
	if err != nil {
		return 0, 0, err
	}
	active, err := r.db.NewSelect().
		Model((*models.Giveaway)(nil)).
		Where("guild_id = ?", guildID).
		Where("status = ?", models.GiveawayStatusActive).
		Count(ctx)
	if err != nil {
		return 0, 0, err
	}
	return active, total, nil
}
