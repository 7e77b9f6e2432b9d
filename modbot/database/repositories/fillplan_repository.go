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

var ErrFillPlanExists = errors.New("fill plan already exists for this giveaway")

type FillPlanRepository interface {
	Create(ctx context.Context, p *models.FillPlan) error
	GetByMessageID(ctx context.Context, messageID snowflake.ID) (*models.FillPlan, error)
	GetActive(ctx context.Context) ([]*models.FillPlan, error)
	DecrementRemaining(ctx context.Context, id int64) (int, error)
	SetStatus(ctx context.Context, messageID snowflake.ID, status models.FillPlanStatus) (bool, error)
}

type fillPlanRepository struct {
	db *bun.DB
}

func NewFillPlanRepository(db *bun.DB) FillPlanRepository {
	return &fillPlanRepository{db: db}
}

func (r *fillPlanRepository) Create(ctx context.Context, p *models.FillPlan) error {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	res, err := r.db.NewInsert().
		Model(p).
		On("CONFLICT (message_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrFillPlanExists
	}
	return nil
}

func (r *fillPlanRepository) GetByMessageID(ctx context.Context, messageID snowflake.ID) (*models.FillPlan, error) {
	p := new(models.FillPlan)
	err := r.db.NewSelect().
		Model(p).
		Where("message_id = ?", messageID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *fillPlanRepository) GetActive(ctx context.Context) ([]*models.FillPlan, error) {
	var plans []*models.FillPlan
	err := r.db.NewSelect().
		Model(&plans).
		Where("status = ?", models.FillPlanStatusActive).
		Where("remaining > 0").
		Order("end_time ASC").
		Scan(ctx)
	return plans, err
}

// DecrementRemaining persists one completed insert and returns the new
// remaining count, or -1 when the plan was no longer active.
func (r *fillPlanRepository) DecrementRemaining(ctx context.Context, id int64) (int, error) {
	var remaining int
	err := r.db.NewUpdate().
		Model((*models.FillPlan)(nil)).
		Set("remaining = remaining - 1").
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("status = ?", models.FillPlanStatusActive).
		Where("remaining > 0").
		Returning("remaining").
		Scan(ctx, &remaining)
	if errors.Is(err, sql.ErrNoRows) {
		return -1, nil
	}
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

func (r *fillPlanRepository) SetStatus(ctx context.Context, messageID snowflake.ID, status models.FillPlanStatus) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*models.FillPlan)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now()).
		Where("message_id = ?", messageID).
		Where("status = ?", models.FillPlanStatusActive).
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
