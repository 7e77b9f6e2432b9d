package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sukoonbot/sukoon/modbot/database/models"
	"github.com/uptrace/bun"
)

var ErrAppealNotFound = errors.New("appeal not found")

type AppealRepository interface {
	Create(ctx context.Context, a *models.Appeal) error
	GetByID(ctx context.Context, id int64) (*models.Appeal, error)
	GetPendingByUser(ctx context.Context, guildID, userID snowflake.ID) (*models.Appeal, error)
	GetLatestByUser(ctx context.Context, guildID, userID snowflake.ID) (*models.Appeal, error)
	SetReviewRef(ctx context.Context, id int64, channelID, messageID snowflake.ID) error
	Review(ctx context.Context, id int64, status models.AppealStatus, reviewerID snowflake.ID, note string) (bool, error)
	ListStale(ctx context.Context, olderThan time.Time) ([]*models.Appeal, error)
}

type appealRepository struct {
	db *bun.DB
}

func NewAppealRepository(db *bun.DB) AppealRepository {
	return &appealRepository{db: db}
}

func (r *appealRepository) Create(ctx context.Context, a *models.Appeal) error {
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	_, err := r.db.NewInsert().Model(a).Exec(ctx)
	return err
}

func (r *appealRepository) GetByID(ctx context.Context, id int64) (*models.Appeal, error) {
	a := new(models.Appeal)
	err := r.db.NewSelect().
		Model(a).
		Where("id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAppealNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *appealRepository) GetPendingByUser(ctx context.Context, guildID, userID snowflake.ID) (*models.Appeal, error) {
	a := new(models.Appeal)
	err := r.db.NewSelect().
		Model(a).
		Where("guild_id = ?", guildID).
		Where("user_id = ?", userID).
		Where("status = ?", models.AppealStatusPending).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *appealRepository) GetLatestByUser(ctx context.Context, guildID, userID snowflake.ID) (*models.Appeal, error) {
	a := new(models.Appeal)
	err := r.db.NewSelect().
		Model(a).
		Where("guild_id = ?", guildID).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *appealRepository) SetReviewRef(ctx context.Context, id int64, channelID, messageID snowflake.ID) error {
	_, err := r.db.NewUpdate().
		Model((*models.Appeal)(nil)).
		Set("review_channel_id = ?", channelID).
		Set("review_message_id = ?", messageID).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// Review resolves a pending appeal. The pending guard keeps two reviewers
// from deciding the same appeal.
func (r *appealRepository) Review(ctx context.Context, id int64, status models.AppealStatus, reviewerID snowflake.ID, note string) (bool, error) {
	now := time.Now()
	res, err := r.db.NewUpdate().
		Model((*models.Appeal)(nil)).
		Set("status = ?", status).
		Set("reviewer_id = ?", reviewerID).
		Set("review_note = ?", note).
		Set("reviewed_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status = ?", models.AppealStatusPending).
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

func (r *appealRepository) ListStale(ctx context.Context, olderThan time.Time) ([]*models.Appeal, error) {
	var appeals []*models.Appeal
	err := r.db.NewSelect().
		Model(&appeals).
		Where("status = ?", models.AppealStatusPending).
		Where("created_at <= ?", olderThan).
		Order("created_at ASC").
		Scan(ctx)
	return appeals, err
}
