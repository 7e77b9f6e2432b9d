package repositories

import (
	"context"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sukoonbot/sukoon/modbot/database/models"
	"github.com/uptrace/bun"
)

type ParticipantRepository interface {
	Add(ctx context.Context, p *models.Participant) (bool, error)
	Remove(ctx context.Context, messageID, userID snowflake.ID) (bool, error)
	List(ctx context.Context, messageID snowflake.ID) ([]*models.Participant, error)
	Count(ctx context.Context, messageID snowflake.ID) (int, error)
	CountByGuild(ctx context.Context, guildID snowflake.ID) (int, error)
}

type participantRepository struct {
	db *bun.DB
}

func NewParticipantRepository(db *bun.DB) ParticipantRepository {
	return &participantRepository{db: db}
}

// Add inserts an entry, reporting false when the user already entered. The
// unique index on (message_id, user_id) makes duplicate reactions a no-op.
func (r *participantRepository) Add(ctx context.Context, p *models.Participant) (bool, error) {
	if p.EnteredAt.IsZero() {
		p.EnteredAt = time.Now()
	}
	res, err := r.db.NewInsert().
		Model(p).
		On("CONFLICT (message_id, user_id) DO NOTHING").
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

func (r *participantRepository) Remove(ctx context.Context, messageID, userID snowflake.ID) (bool, error) {
	res, err := r.db.NewDelete().
		Model((*models.Participant)(nil)).
		Where("message_id = ?", messageID).
		Where("user_id = ?", userID).
		Where("is_forced = false").
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

func (r *participantRepository) List(ctx context.Context, messageID snowflake.ID) ([]*models.Participant, error) {
	var participants []*models.Participant
	err := r.db.NewSelect().
		Model(&participants).
		Where("message_id = ?", messageID).
		Order("entered_at ASC").
		Scan(ctx)
	return participants, err
}

func (r *participantRepository) Count(ctx context.Context, messageID snowflake.ID) (int, error) {
	return r.db.NewSelect().
		Model((*models.Participant)(nil)).
		Where("message_id = ?", messageID).
		Count(ctx)
}

func (r *participantRepository) CountByGuild(ctx context.Context, guildID snowflake.ID) (int, error) {
	return r.db.NewSelect().
		Model((*models.Participant)(nil)).
		Join("JOIN giveaways AS g ON g.message_id = gp.message_id").
		Where("g.guild_id = ?", guildID).
		Count(ctx)
}
