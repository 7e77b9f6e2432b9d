package models

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// Participant is one entry in a giveaway. Synthetic entries carry the id of
// the real member they were cloned from so a member and its clone never both
// count.
type Participant struct {
	bun.BaseModel `bun:"table:giveaway_participants,alias:gp"`

	ID        int64        `bun:"id,pk,autoincrement"`
	MessageID snowflake.ID `bun:"message_id,notnull"`
	UserID    snowflake.ID `bun:"user_id,notnull"`
	Username  string       `bun:"username,notnull"`

	IsForced       bool         `bun:"is_forced,notnull,default:false"`
	IsSynthetic    bool         `bun:"is_synthetic,notnull,default:false"`
	OriginalUserID snowflake.ID `bun:"original_user_id,nullzero"`

	EnteredAt time.Time `bun:"entered_at,notnull,default:current_timestamp"`
}

// DrawID returns the id that counts for winner selection. Synthetic entries
// resolve to the member they were cloned from.
func (p *Participant) DrawID() snowflake.ID {
	if p.IsSynthetic && p.OriginalUserID != 0 {
		return p.OriginalUserID
	}
	return p.UserID
}
