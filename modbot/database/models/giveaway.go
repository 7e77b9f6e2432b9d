package models

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

type GiveawayStatus string

const (
	GiveawayStatusActive    GiveawayStatus = "active"
	GiveawayStatusEnded     GiveawayStatus = "ended"
	GiveawayStatusCancelled GiveawayStatus = "cancelled"
	GiveawayStatusError     GiveawayStatus = "error"
)

// Giveaway is keyed by the announcement message so reaction events can be
// resolved without an extra lookup.
type Giveaway struct {
	bun.BaseModel `bun:"table:giveaways,alias:g"`

	MessageID   snowflake.ID   `bun:"message_id,pk"`
	ChannelID   snowflake.ID   `bun:"channel_id,notnull"`
	GuildID     snowflake.ID   `bun:"guild_id,notnull"`
	HostID      snowflake.ID   `bun:"host_id,notnull"`
	Prize       string         `bun:"prize,notnull"`
	WinnerCount int            `bun:"winner_count,notnull"`
	Status      GiveawayStatus `bun:"status,notnull,default:'active'"`
	EndTime     time.Time      `bun:"end_time,notnull"`

	// Winners of the most recent draw, empty until the giveaway ends.
	WinnerIDs []int64 `bun:"winner_ids,array"`
	// Every user ever drawn, across the initial draw and all rerolls.
	DrawnIDs []int64 `bun:"drawn_ids,array"`
	// Pool size at the time the giveaway ended.
	ParticipantCount int `bun:"participant_count,notnull,default:0"`

	CancelReason string `bun:"cancel_reason"`
	LastError    string `bun:"last_error"`

	ResolvedBy snowflake.ID `bun:"resolved_by,nullzero"`
	ResolvedAt *time.Time   `bun:"resolved_at,nullzero"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func (g *Giveaway) IsActive() bool {
	return g.Status == GiveawayStatusActive
}

func (g *Giveaway) HasEnded(now time.Time) bool {
	return !now.Before(g.EndTime)
}
