package models

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

type FillPlanStatus string

const (
	FillPlanStatusActive    FillPlanStatus = "active"
	FillPlanStatusCompleted FillPlanStatus = "completed"
	FillPlanStatusCancelled FillPlanStatus = "cancelled"
)

// FillPlan schedules synthetic participant inserts for a giveaway, spread out
// until EndTime. Remaining is persisted after every insert so a restart
// resumes exactly where it left off.
type FillPlan struct {
	bun.BaseModel `bun:"table:fill_plans,alias:fp"`

	ID        int64          `bun:"id,pk,autoincrement"`
	MessageID snowflake.ID   `bun:"message_id,notnull,unique"`
	GuildID   snowflake.ID   `bun:"guild_id,notnull"`
	Total     int            `bun:"total,notnull"`
	Remaining int            `bun:"remaining,notnull"`
	EndTime   time.Time      `bun:"end_time,notnull"`
	Status    FillPlanStatus `bun:"status,notnull,default:'active'"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func (p *FillPlan) IsActive() bool {
	return p.Status == FillPlanStatusActive
}
