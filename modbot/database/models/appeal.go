package models

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

type AppealStatus string

const (
	AppealStatusPending  AppealStatus = "pending"
	AppealStatusApproved AppealStatus = "approved"
	AppealStatusDenied   AppealStatus = "denied"
	AppealStatusExpired  AppealStatus = "expired"
)

type Appeal struct {
	bun.BaseModel `bun:"table:appeals,alias:ap"`

	ID         int64        `bun:"id,pk,autoincrement"`
	GuildID    snowflake.ID `bun:"guild_id,notnull"`
	UserID     snowflake.ID `bun:"user_id,notnull"`
	CaseNumber int64        `bun:"case_number,notnull"`
	Content    string       `bun:"content,notnull"`
	Status     AppealStatus `bun:"status,notnull,default:'pending'"`

	ReviewerID snowflake.ID `bun:"reviewer_id,nullzero"`
	ReviewNote string       `bun:"review_note"`
	ReviewedAt *time.Time   `bun:"reviewed_at,nullzero"`

	// Message posted in the staff review channel, edited when reviewed.
	ReviewChannelID snowflake.ID `bun:"review_channel_id,nullzero"`
	ReviewMessageID snowflake.ID `bun:"review_message_id,nullzero"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func (a *Appeal) IsPending() bool {
	return a.Status == AppealStatusPending
}
