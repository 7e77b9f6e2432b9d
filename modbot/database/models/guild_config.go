package models

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// GuildConfig holds the per-guild moderation setup written by /setup-mute.
type GuildConfig struct {
	bun.BaseModel `bun:"table:guild_configs,alias:gc"`

	GuildID snowflake.ID `bun:"guild_id,pk"`

	MuteRoleID      snowflake.ID `bun:"mute_role_id,nullzero"`
	JailChannelID   snowflake.ID `bun:"jail_channel_id,nullzero"`
	LogChannelID    snowflake.ID `bun:"log_channel_id,nullzero"`
	AppealChannelID snowflake.ID `bun:"appeal_channel_id,nullzero"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func (c *GuildConfig) IsComplete() bool {
	return c.MuteRoleID != 0 && c.JailChannelID != 0
}
