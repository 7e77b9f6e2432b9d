package repositories

import (
	"context"
	"time"

	"github.com/sukoonbot/sukoon/modbot/database/models"
	"github.com/uptrace/bun"
)

type PendingDeleteRepository interface {
	Create(ctx context.Context, p *models.PendingDMDelete) error
	ListAll(ctx context.Context) ([]*models.PendingDMDelete, error)
	Delete(ctx context.Context, id int64) error
}

type pendingDeleteRepository struct {
	db *bun.DB
}

func NewPendingDeleteRepository(db *bun.DB) PendingDeleteRepository {
	return &pendingDeleteRepository{db: db}
}

func (r *pendingDeleteRepository) Create(ctx context.Context, p *models.PendingDMDelete) error {
	p.CreatedAt = time.Now()
	_, err := r.db.NewInsert().
		Model(p).
		On("CONFLICT (message_id) DO NOTHING").
		Exec(ctx)
	return err
}

func (r *pendingDeleteRepository) ListAll(ctx context.Context) ([]*models.PendingDMDelete, error) {
	var pending []*models.PendingDMDelete
	err := r.db.NewSelect().
		Model(&pending).
		Order("delete_at ASC").
		Scan(ctx)
	return pending, err
}

func (r *pendingDeleteRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.NewDelete().
		Model((*models.PendingDMDelete)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}
