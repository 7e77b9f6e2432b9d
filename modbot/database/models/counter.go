package models

import (
	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// GuildCounter backs the per-guild case number sequence.
type GuildCounter struct {
	bun.BaseModel `bun:"table:guild_counters,alias:ct"`

	GuildID snowflake.ID `bun:"guild_id,pk"`
	Name    string       `bun:"name,pk"`
	Value   int64        `bun:"value,notnull,default:0"`
}
