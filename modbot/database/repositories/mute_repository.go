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

var (
	ErrMuteNotFound     = errors.New("mute not found")
	ErrUserAlreadyMuted = errors.New("user already has an active mute")
)

type MuteRepository interface {
	Create(ctx context.Context, m *models.Mute) error
	GetActiveByUser(ctx context.Context, guildID, userID snowflake.ID) (*models.Mute, error)
	GetByCase(ctx context.Context, guildID snowflake.ID, caseNumber int64) (*models.Mute, error)
	ListActive(ctx context.Context, guildID snowflake.ID) ([]*models.Mute, error)
	ListExpired(ctx context.Context, now time.Time) ([]*models.Mute, error)
	ListByUser(ctx context.Context, guildID, userID snowflake.ID) ([]*models.Mute, error)
	ListCases(ctx context.Context, guildID snowflake.ID, limit int) ([]*models.Mute, error)
	Resolve(ctx context.Context, id int64, status models.MuteStatus, by snowflake.ID, reason string) (bool, error)
	MarkError(ctx context.Context, id int64, detail string) error
	ResolveAll(ctx context.Context, guildID snowflake.ID, by snowflake.ID, reason string) (int64, error)
}

type muteRepository struct {
	db *bun.DB
}

func NewMuteRepository(db *bun.DB) MuteRepository {
	return &muteRepository{db: db}
}

func (r *muteRepository) Create(ctx context.Context, m *models.Mute) error {
	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now
	if m.MutedAt.IsZero() {
		m.MutedAt = now
	}
	if m.Status == "" {
		m.Status = models.MuteStatusActive
	}

	existing, err := r.GetActiveByUser(ctx, m.GuildID, m.UserID)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrUserAlreadyMuted
	}

	// The idx_mutes_one_active partial unique index is the real arbiter;
	// two concurrent inserts both pass the check above and one of them
	// loses here.
	if _, err := r.db.NewInsert().Model(m).Exec(ctx); err != nil {
		if pgUniqueViolation(err) {
			return ErrUserAlreadyMuted
		}
		return err
	}
	return nil
}

// pgUniqueViolation reports whether err is a Postgres unique constraint
// violation. pgdriver errors expose SQLSTATE through Field('C').
func pgUniqueViolation(err error) bool {
	var pgErr interface {
		error
		Field(byte) string
	}
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}
	return false
}

func (r *muteRepository) GetActiveByUser(ctx context.Context, guildID, userID snowflake.ID) (*models.Mute, error) {
	m := new(models.Mute)
	err := r.db.NewSelect().
		Model(m).
		Where("guild_id = ?", guildID).
		Where("user_id = ?", userID).
		Where("status = ?", models.MuteStatusActive).
		Order("muted_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *muteRepository) GetByCase(ctx context.Context, guildID snowflake.ID, caseNumber int64) (*models.Mute, error) {
	m := new(models.Mute)
	err := r.db.NewSelect().
		Model(m).
		Where("guild_id = ?", guildID).
		Where("case_number = ?", caseNumber).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMuteNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *muteRepository) ListActive(ctx context.Context, guildID snowflake.ID) ([]*models.Mute, error) {
	var mutes []*models.Mute
	err := r.db.NewSelect().
		Model(&mutes).
		Where("guild_id = ?", guildID).
		Where("status = ?", models.MuteStatusActive).
		Order("muted_at DESC").
		Scan(ctx)
	return mutes, err
}

func (r *muteRepository) ListExpired(ctx context.Context, now time.Time) ([]*models.Mute, error) {
	var mutes []*models.Mute
	err := r.db.NewSelect().
		Model(&mutes).
		Where("status = ?", models.MuteStatusActive).
		Where("expires_at IS NOT NULL").
		Where("expires_at <= ?", now).
		Order("expires_at ASC").
		Scan(ctx)
	return mutes, err
}

func (r *muteRepository) ListByUser(ctx context.Context, guildID, userID snowflake.ID) ([]*models.Mute, error) {
	var mutes []*models.Mute
	err := r.db.NewSelect().
		Model(&mutes).
		Where("guild_id = ?", guildID).
		Where("user_id = ?", userID).
		Order("muted_at DESC").
		Scan(ctx)
	return mutes, err
}

func (r *muteRepository) ListCases(ctx context.Context, guildID snowflake.ID, limit int) ([]*models.Mute, error) {
	var mutes []*models.Mute
	err := r.db.NewSelect().
		Model(&mutes).
		Where("guild_id = ?", guildID).
		Order("case_number DESC").
		Limit(limit).
		Scan(ctx)
	return mutes, err
}

// Resolve moves an active case to a terminal status. The active guard keeps
// the auto-expiry loop and a manual unmute from both reporting success.
func (r *muteRepository) Resolve(ctx context.Context, id int64, status models.MuteStatus, by snowflake.ID, reason string) (bool, error) {
	now := time.Now()
	res, err := r.db.NewUpdate().
		Model((*models.Mute)(nil)).
		Set("status = ?", status).
		Set("resolved_by = ?", by).
		Set("resolve_reason = ?", reason).
		Set("resolved_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status IN (?, ?)", models.MuteStatusActive, models.MuteStatusError).
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

func (r *muteRepository) MarkError(ctx context.Context, id int64, detail string) error {
	now := time.Now()
	_, err := r.db.NewUpdate().
		Model((*models.Mute)(nil)).
		Set("status = ?", models.MuteStatusError).
		Set("last_error = ?", detail).
		Set("resolved_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status = ?", models.MuteStatusActive).
		Exec(ctx)
	return err
}

func (r *muteRepository) ResolveAll(ctx context.Context, guildID snowflake.ID, by snowflake.ID, reason string) (int64, error) {
	now := time.Now()
	res, err := r.db.NewUpdate().
		Model((*models.Mute)(nil)).
		Set("status = ?", models.MuteStatusLifted).
		Set("resolved_by = ?", by).
		Set("resolve_reason = ?", reason).
		Set("resolved_at = ?", now).
		Set("updated_at = ?", now).
		Where("guild_id = ?", guildID).
		Where("status = ?", models.MuteStatusActive).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
