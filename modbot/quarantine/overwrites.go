package quarantine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sukoonbot/sukoon/modbot/database/models"
	"github.com/sukoonbot/sukoon/modbot/gateway"
)

const (
	mutedRoleName   = "Muted"
	jailChannelName = "jail"
	logChannelName  = "punishment-logs"

	sweepSpacing     = 250 * time.Millisecond
	sweepMaxAttempts = 3
	sweepMaxBackoff  = 4 * time.Second
)

// SetupResult reports what Setup created or reused, plus channels the sweep
// could not reach.
type SetupResult struct {
	Config         *models.GuildConfig
	CreatedRole    bool
	CreatedJail    bool
	CreatedLog     bool
	FailedChannels []string
}

// Setup provisions the mute role, the jail channel and the log channel,
// reusing existing ones by name, then propagates overwrites across every
// channel and persists the config.
func (m *Manager) Setup(ctx context.Context, guildID snowflake.ID) (*SetupResult, error) {
	res := &SetupResult{}

	roles, err := m.client.GetRoles(ctx, guildID)
	if err != nil {
		return nil, err
	}
	var muteRoleID snowflake.ID
	for _, r := range roles {
		if r.Name == mutedRoleName {
			muteRoleID = r.ID
			break
		}
	}
	if muteRoleID == 0 {
		role, err := m.client.CreateRole(ctx, guildID, mutedRoleName)
		if err != nil {
			return nil, fmt.Errorf("failed to create mute role: %w", err)
		}
		muteRoleID = role.ID
		res.CreatedRole = true
	}

	channels, err := m.client.GetChannels(ctx, guildID)
	if err != nil {
		return nil, err
	}
	var jailID, logID snowflake.ID
	for _, ch := range channels {
		if ch.Kind != gateway.ChannelKindText {
			continue
		}
		switch ch.Name {
		case jailChannelName:
			jailID = ch.ID
		case logChannelName:
			logID = ch.ID
		}
	}

	if jailID == 0 {
		ch, err := m.client.CreateTextChannel(ctx, guildID, jailChannelName, jailOverwrites(guildID, muteRoleID, m.client.BotUserID()))
		if err != nil {
			return nil, fmt.Errorf("failed to create jail channel: %w", err)
		}
		jailID = ch.ID
		res.CreatedJail = true
	}
	if logID == 0 {
		ch, err := m.client.CreateTextChannel(ctx, guildID, logChannelName, hiddenOverwrites(guildID, m.client.BotUserID()))
		if err != nil {
			return nil, fmt.Errorf("failed to create log channel: %w", err)
		}
		logID = ch.ID
		res.CreatedLog = true
	}

	res.FailedChannels = m.Sweep(ctx, guildID, muteRoleID, jailID)

	cfg := &models.GuildConfig{
		GuildID:       guildID,
		MuteRoleID:    muteRoleID,
		JailChannelID: jailID,
		LogChannelID:  logID,
	}
	if err := m.guildConfigs.Upsert(ctx, cfg); err != nil {
		return nil, err
	}
	res.Config = cfg

	slog.Info("Quarantine setup complete",
		slog.String("type", "mute"),
		slog.String("guild_id", guildID.String()),
		slog.Int("failed_channels", len(res.FailedChannels)))
	return res, nil
}

// ReapplySweep re-propagates the mute role overwrites for an already
// configured guild, for channels created after setup.
func (m *Manager) ReapplySweep(ctx context.Context, guildID snowflake.ID) ([]string, error) {
	cfg, err := m.guildConfigs.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if cfg == nil || !cfg.IsComplete() {
		return nil, ErrNotConfigured
	}
	return m.Sweep(ctx, guildID, cfg.MuteRoleID, cfg.JailChannelID), nil
}

// Sweep applies the mute role overwrite to every channel: categories first
// so channel-level overwrites can override inherited state, one at a time
// with fixed spacing, bounded exponential backoff per channel. Returns the
// names of channels that could not be updated; one failing channel never
// aborts the sweep. A per-guild lock keeps two sweeps from interleaving.
func (m *Manager) Sweep(ctx context.Context, guildID, muteRoleID, jailChannelID snowflake.ID) []string {
	lockIface, _ := m.sweepLocks.LoadOrStore(guildID, &sync.Mutex{})
	lock := lockIface.(*sync.Mutex)
	lock.Lock()
	defer lock.Unlock()

	channels, err := m.client.GetChannels(ctx, guildID)
	if err != nil {
		slog.Error("Sweep cannot list channels",
			slog.String("type", "mute"),
			slog.String("guild_id", guildID.String()),
			slog.Any("error", err))
		return []string{"<channel listing failed>"}
	}

	var categories, leaves []gateway.Channel
	for _, ch := range channels {
		if ch.Kind == gateway.ChannelKindCategory {
			categories = append(categories, ch)
		} else {
			leaves = append(leaves, ch)
		}
	}

	var failed []string
	for _, ch := range append(categories, leaves...) {
		if err := m.sweepOne(ctx, ch, muteRoleID, jailChannelID); err != nil {
			failed = append(failed, ch.Name)
		}
		select {
		case <-ctx.Done():
			return failed
		case <-time.After(sweepSpacing):
		}
	}

	if len(failed) > 0 {
		slog.Warn("Sweep finished with failures",
			slog.String("type", "mute"),
			slog.String("guild_id", guildID.String()),
			slog.Int("failed", len(failed)))
	}
	return failed
}

func (m *Manager) sweepOne(ctx context.Context, ch gateway.Channel, muteRoleID, jailChannelID snowflake.ID) error {
	ow := gateway.Overwrite{ViewChannel: false, SendMessages: false, AddReactions: false}
	if ch.ID == jailChannelID {
		ow = gateway.Overwrite{ViewChannel: true, SendMessages: true, AddReactions: false}
	}

	var err error
	backoff := sweepSpacing
	for attempt := 0; attempt < sweepMaxAttempts; attempt++ {
		if attempt > 0 {
			if backoff > sweepMaxBackoff {
				backoff = sweepMaxBackoff
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		err = m.client.SetRoleOverwrite(ctx, ch.ID, muteRoleID, ow)
		if err == nil {
			return nil
		}
		if !gateway.IsTransient(err) {
			break
		}
	}

	slog.Warn("Failed to apply channel overwrite",
		slog.String("type", "mute"),
		slog.String("channel", ch.Name),
		slog.Any("error", err))
	return err
}

// CheckSetup verifies the persisted config still points at a live role and
// channels.
func (m *Manager) CheckSetup(ctx context.Context, guildID snowflake.ID) (*models.GuildConfig, []string, error) {
	cfg, err := m.guildConfigs.Get(ctx, guildID)
	if err != nil {
		return nil, nil, err
	}
	if cfg == nil {
		return nil, nil, ErrNotConfigured
	}

	var problems []string

	roles, err := m.client.GetRoles(ctx, guildID)
	if err != nil {
		return nil, nil, err
	}
	roleFound := false
	for _, r := range roles {
		if r.ID == cfg.MuteRoleID {
			roleFound = true
			break
		}
	}
	if !roleFound {
		problems = append(problems, "mute role is missing")
	}

	channels, err := m.client.GetChannels(ctx, guildID)
	if err != nil {
		return nil, nil, err
	}
	jailFound, logFound := false, cfg.LogChannelID == 0
	for _, ch := range channels {
		if ch.ID == cfg.JailChannelID {
			jailFound = true
		}
		if ch.ID == cfg.LogChannelID {
			logFound = true
		}
	}
	if !jailFound {
		problems = append(problems, "jail channel is missing")
	}
	if !logFound {
		problems = append(problems, "log channel is missing")
	}

	return cfg, problems, nil
}

func jailOverwrites(guildID, muteRoleID, botID snowflake.ID) []discord.PermissionOverwrite {
	return []discord.PermissionOverwrite{
		discord.RolePermissionOverwrite{
			RoleID: guildID, // @everyone
			Deny:   discord.PermissionViewChannel,
		},
		discord.RolePermissionOverwrite{
			RoleID: muteRoleID,
			Allow:  discord.PermissionViewChannel | discord.PermissionSendMessages,
			Deny:   discord.PermissionAddReactions,
		},
		discord.MemberPermissionOverwrite{
			UserID: botID,
			Allow:  discord.PermissionViewChannel | discord.PermissionSendMessages | discord.PermissionManageMessages,
		},
	}
}

func hiddenOverwrites(guildID, botID snowflake.ID) []discord.PermissionOverwrite {
	return []discord.PermissionOverwrite{
		discord.RolePermissionOverwrite{
			RoleID: guildID,
			Deny:   discord.PermissionViewChannel,
		},
		discord.MemberPermissionOverwrite{
			UserID: botID,
			Allow:  discord.PermissionViewChannel | discord.PermissionSendMessages,
		},
	}
}

