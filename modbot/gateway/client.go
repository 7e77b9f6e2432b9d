package gateway

import (
	"context"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
)

// Client is the narrow surface the lifecycle engines need from the chat
// gateway. The engines never talk to disgo directly; in tests the whole
// thing is replaced with a fake.
type Client interface {
	BotUserID() snowflake.ID

	GetGuild(ctx context.Context, guildID snowflake.ID) (Guild, error)
	GetMember(ctx context.Context, guildID, userID snowflake.ID) (Member, error)
	ListMembers(ctx context.Context, guildID snowflake.ID, limit int) ([]Member, error)

	GetRoles(ctx context.Context, guildID snowflake.ID) ([]Role, error)
	CreateRole(ctx context.Context, guildID snowflake.ID, name string) (Role, error)
	GrantRole(ctx context.Context, guildID, userID, roleID snowflake.ID, reason string) error
	RevokeRole(ctx context.Context, guildID, userID, roleID snowflake.ID, reason string) error

	GetChannels(ctx context.Context, guildID snowflake.ID) ([]Channel, error)
	CreateTextChannel(ctx context.Context, guildID snowflake.ID, name string, overwrites []discord.PermissionOverwrite) (Channel, error)
	SetRoleOverwrite(ctx context.Context, channelID, roleID snowflake.ID, ow Overwrite) error

	SendMessage(ctx context.Context, channelID snowflake.ID, msg discord.MessageCreate) (MessageRef, error)
	EditMessage(ctx context.Context, ref MessageRef, update discord.MessageUpdate) error
	DeleteMessage(ctx context.Context, ref MessageRef) error
	AddReaction(ctx context.Context, ref MessageRef, emoji string) error
	ClearReactions(ctx context.Context, ref MessageRef) error

	SendDirectMessage(ctx context.Context, userID snowflake.ID, msg discord.MessageCreate) (MessageRef, error)
	DeleteDirectMessage(ctx context.Context, userID, messageID snowflake.ID) error
}

type Guild struct {
	ID      snowflake.ID
	Name    string
	OwnerID snowflake.ID
	IconURL string
}

type Member struct {
	ID       snowflake.ID
	Username string
	IsBot    bool
	RoleIDs  []snowflake.ID
}

type Role struct {
	ID       snowflake.ID
	Name     string
	Position int
}

type ChannelKind int

const (
	ChannelKindText ChannelKind = iota
	ChannelKindVoice
	ChannelKindCategory
	ChannelKindOther
)

type Channel struct {
	ID       snowflake.ID
	Name     string
	Kind     ChannelKind
	ParentID snowflake.ID
}

// MessageRef identifies a message across restarts; it is what gets persisted
// for scheduled deletions and giveaway embeds.
type MessageRef struct {
	ChannelID snowflake.ID
	MessageID snowflake.ID
}

// Overwrite is the role permission overwrite the quarantine sweep applies per
// channel: true allows, false denies.
type Overwrite struct {
	ViewChannel  bool
	SendMessages bool
	AddReactions bool
}
