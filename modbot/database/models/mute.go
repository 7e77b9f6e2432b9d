package models

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

type MuteStatus string

const (
	MuteStatusActive  MuteStatus = "active"
	MuteStatusExpired MuteStatus = "expired"
	MuteStatusLifted  MuteStatus = "lifted"
	MuteStatusError   MuteStatus = "error"
)

// Mute records one quarantine case. CaseNumber is unique per guild and comes
// from the guild counter, never reused even for resolved cases.
type Mute struct {
	bun.BaseModel `bun:"table:mutes,alias:m"`

	ID         int64        `bun:"id,pk,autoincrement"`
	GuildID    snowflake.ID `bun:"guild_id,notnull"`
	UserID     snowflake.ID `bun:"user_id,notnull"`
	Username   string       `bun:"username,notnull"`
	CaseNumber int64        `bun:"case_number,notnull"`

	ModeratorID snowflake.ID `bun:"moderator_id,notnull"`
	Reason      string       `bun:"reason,notnull"`
	Status      MuteStatus   `bun:"status,notnull,default:'active'"`
	LastError   string       `bun:"last_error"`

	// RestoreRoleIDs are the roles stripped when the mute was applied,
	// given back on lift.
	RestoreRoleIDs []int64 `bun:"restore_role_ids,array"`

	MutedAt   time.Time  `bun:"muted_at,notnull"`
	ExpiresAt *time.Time `bun:"expires_at,nullzero"`

	ResolvedBy    snowflake.ID `bun:"resolved_by,nullzero"`
	ResolvedAt    *time.Time   `bun:"resolved_at,nullzero"`
	ResolveReason string       `bun:"resolve_reason"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func (m *Mute) IsActive() bool {
	return m.Status == MuteStatusActive
}

func (m *Mute) IsPermanent() bool {
	return m.ExpiresAt == nil
}

func (m *Mute) IsExpired(now time.Time) bool {
	return m.ExpiresAt != nil && !now.Before(*m.ExpiresAt)
}
