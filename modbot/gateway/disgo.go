package gateway

import (
	"context"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
)

// DisgoClient adapts a disgo bot.Client to the Client interface.
type DisgoClient struct {
	client bot.Client
}

func NewDisgoClient(client bot.Client) *DisgoClient {
	return &DisgoClient{client: client}
}

var _ Client = (*DisgoClient)(nil)

func (c *DisgoClient) BotUserID() snowflake.ID {
	return c.client.ApplicationID()
}

func (c *DisgoClient) GetGuild(ctx context.Context, guildID snowflake.ID) (Guild, error) {
	guild, err := c.client.Rest().GetGuild(guildID, false, rest.WithCtx(ctx))
	if err != nil {
		return Guild{}, wrapErr("get guild", err)
	}
	g := Guild{
		ID:      guild.ID,
		Name:    guild.Name,
		OwnerID: guild.OwnerID,
	}
	if iconURL := guild.IconURL(); iconURL != nil {
		g.IconURL = *iconURL
	}
	return g, nil
}

func (c *DisgoClient) GetMember(ctx context.Context, guildID, userID snowflake.ID) (Member, error) {
	member, err := c.client.Rest().GetMember(guildID, userID, rest.WithCtx(ctx))
	if err != nil {
		return Member{}, wrapErr("get member", err)
	}
	return convertMember(*member), nil
}

func (c *DisgoClient) ListMembers(ctx context.Context, guildID snowflake.ID, limit int) ([]Member, error) {
	members, err := c.client.Rest().GetMembers(guildID, limit, 0, rest.WithCtx(ctx))
	if err != nil {
		return nil, wrapErr("list members", err)
	}
	out := make([]Member, 0, len(members))
	for _, m := range members {
		out = append(out, convertMember(m))
	}
	return out, nil
}

func (c *DisgoClient) GetRoles(ctx context.Context, guildID snowflake.ID) ([]Role, error) {
	roles, err := c.client.Rest().GetRoles(guildID, rest.WithCtx(ctx))
	if err != nil {
		return nil, wrapErr("get roles", err)
	}
	out := make([]Role, 0, len(roles))
	for _, r := range roles {
		out = append(out, Role{ID: r.ID, Name: r.Name, Position: r.Position})
	}
	return out, nil
}

func (c *DisgoClient) CreateRole(ctx context.Context, guildID snowflake.ID, name string) (Role, error) {
	role, err := c.client.Rest().CreateRole(guildID, discord.RoleCreate{Name: name}, rest.WithCtx(ctx))
	if err != nil {
		return Role{}, wrapErr("create role", err)
	}
	return Role{ID: role.ID, Name: role.Name, Position: role.Position}, nil
}

func (c *DisgoClient) GrantRole(ctx context.Context, guildID, userID, roleID snowflake.ID, reason string) error {
	err := c.client.Rest().AddMemberRole(guildID, userID, roleID, rest.WithCtx(ctx), rest.WithReason(reason))
	return wrapErr("grant role", err)
}

func (c *DisgoClient) RevokeRole(ctx context.Context, guildID, userID, roleID snowflake.ID, reason string) error {
	err := c.client.Rest().RemoveMemberRole(guildID, userID, roleID, rest.WithCtx(ctx), rest.WithReason(reason))
	return wrapErr("revoke role", err)
}

func (c *DisgoClient) GetChannels(ctx context.Context, guildID snowflake.ID) ([]Channel, error) {
	channels, err := c.client.Rest().GetGuildChannels(guildID, rest.WithCtx(ctx))
	if err != nil {
		return nil, wrapErr("get channels", err)
	}
	out := make([]Channel, 0, len(channels))
	for _, ch := range channels {
		conv := Channel{
			ID:   ch.ID(),
			Name: ch.Name(),
			Kind: convertChannelKind(ch.Type()),
		}
		if parentID := ch.ParentID(); parentID != nil {
			conv.ParentID = *parentID
		}
		out = append(out, conv)
	}
	return out, nil
}

func (c *DisgoClient) CreateTextChannel(ctx context.Context, guildID snowflake.ID, name string, overwrites []discord.PermissionOverwrite) (Channel, error) {
	ch, err := c.client.Rest().CreateGuildChannel(guildID, discord.GuildTextChannelCreate{
		Name:                 name,
		PermissionOverwrites: overwrites,
	}, rest.WithCtx(ctx))
	if err != nil {
		return Channel{}, wrapErr("create channel", err)
	}
	return Channel{ID: ch.ID(), Name: ch.Name(), Kind: ChannelKindText}, nil
}

func (c *DisgoClient) SetRoleOverwrite(ctx context.Context, channelID, roleID snowflake.ID, ow Overwrite) error {
	var allow, deny discord.Permissions
	apply := func(enabled bool, perm discord.Permissions) {
		if enabled {
			allow = allow.Add(perm)
		} else {
			deny = deny.Add(perm)
		}
	}
	apply(ow.ViewChannel, discord.PermissionViewChannel)
	apply(ow.SendMessages, discord.PermissionSendMessages)
	apply(ow.AddReactions, discord.PermissionAddReactions)

	err := c.client.Rest().UpdatePermissionOverwrite(channelID, roleID, discord.RolePermissionOverwriteUpdate{
		Allow: &allow,
		Deny:  &deny,
	}, rest.WithCtx(ctx))
	return wrapErr("set channel overwrite", err)
}

func (c *DisgoClient) SendMessage(ctx context.Context, channelID snowflake.ID, msg discord.MessageCreate) (MessageRef, error) {
	message, err := c.client.Rest().CreateMessage(channelID, msg, rest.WithCtx(ctx))
	if err != nil {
		return MessageRef{}, wrapErr("send message", err)
	}
	return MessageRef{ChannelID: message.ChannelID, MessageID: message.ID}, nil
}

func (c *DisgoClient) EditMessage(ctx context.Context, ref MessageRef, update discord.MessageUpdate) error {
	_, err := c.client.Rest().UpdateMessage(ref.ChannelID, ref.MessageID, update, rest.WithCtx(ctx))
	return wrapErr("edit message", err)
}

func (c *DisgoClient) DeleteMessage(ctx context.Context, ref MessageRef) error {
	err := c.client.Rest().DeleteMessage(ref.ChannelID, ref.MessageID, rest.WithCtx(ctx))
	return wrapErr("delete message", err)
}

func (c *DisgoClient) AddReaction(ctx context.Context, ref MessageRef, emoji string) error {
	err := c.client.Rest().AddReaction(ref.ChannelID, ref.MessageID, emoji, rest.WithCtx(ctx))
	return wrapErr("add reaction", err)
}

func (c *DisgoClient) ClearReactions(ctx context.Context, ref MessageRef) error {
	err := c.client.Rest().RemoveAllReactions(ref.ChannelID, ref.MessageID, rest.WithCtx(ctx))
	return wrapErr("clear reactions", err)
}

func (c *DisgoClient) SendDirectMessage(ctx context.Context, userID snowflake.ID, msg discord.MessageCreate) (MessageRef, error) {
	dmChannel, err := c.client.Rest().CreateDMChannel(userID, rest.WithCtx(ctx))
	if err != nil {
		return MessageRef{}, wrapErr("create dm channel", err)
	}
	message, err := c.client.Rest().CreateMessage(dmChannel.ID(), msg, rest.WithCtx(ctx))
	if err != nil {
		return MessageRef{}, wrapErr("send dm", err)
	}
	return MessageRef{ChannelID: message.ChannelID, MessageID: message.ID}, nil
}

func (c *DisgoClient) DeleteDirectMessage(ctx context.Context, userID, messageID snowflake.ID) error {
	dmChannel, err := c.client.Rest().CreateDMChannel(userID, rest.WithCtx(ctx))
	if err != nil {
		return wrapErr("create dm channel", err)
	}
	err = c.client.Rest().DeleteMessage(dmChannel.ID(), messageID, rest.WithCtx(ctx))
	return wrapErr("delete dm", err)
}

func convertMember(m discord.Member) Member {
	return Member{
		ID:       m.User.ID,
		Username: m.User.Username,
		IsBot:    m.User.Bot,
		RoleIDs:  m.RoleIDs,
	}
}

func convertChannelKind(t discord.ChannelType) ChannelKind {
	switch t {
	case discord.ChannelTypeGuildText, discord.ChannelTypeGuildNews:
		return ChannelKindText
	case discord.ChannelTypeGuildVoice, discord.ChannelTypeGuildStageVoice:
		return ChannelKindVoice
	case discord.ChannelTypeGuildCategory:
		return ChannelKindCategory
	default:
		return ChannelKindOther
	}
}
