package models

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// PendingDMDelete is a self-destructing direct message obligation. The row
// outlives restarts so the delete still happens even if the process dies
// before the timer fires.
type PendingDMDelete struct {
	bun.BaseModel `bun:"table:pending_dm_deletes,alias:pd"`

	ID        int64        `bun:"id,pk,autoincrement"`
	UserID    snowflake.ID `bun:"user_id,notnull"`
	MessageID snowflake.ID `bun:"message_id,notnull,unique"`
	DeleteAt  time.Time    `bun:"delete_at,notnull"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
