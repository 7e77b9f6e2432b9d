// Package giveaway implements the giveaway lifecycle: creation, reaction
// entries, timed ending with winner selection, rerolls, and the synthetic
// fill sub-process. The store is the source of truth; everything in memory
// is an advisory cache rebuilt from it after a restart.
package giveaway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sukoonbot/sukoon/modbot/database/models"
	"github.com/sukoonbot/sukoon/modbot/database/repositories"
	"github.com/sukoonbot/sukoon/modbot/gateway"
	"github.com/sukoonbot/sukoon/modbot/tasks"
)

const entryEmoji = "🎉"

var (
	ErrNotActive       = errors.New("giveaway is not active")
	ErrAlreadyResolved = errors.New("giveaway was already resolved")
	ErrNotEnded        = errors.New("giveaway has not ended yet")
	ErrInvalidDuration = errors.New("giveaway duration out of range")
	ErrInvalidWinners  = errors.New("winner count out of range")
)

type Manager struct {
	giveaways    repositories.GiveawayRepository
	participants repositories.ParticipantRepository
	fillPlans    repositories.FillPlanRepository
	client       gateway.Client
	supervisor   *tasks.Supervisor
	cfg          Config

	tickMu sync.Mutex

	caseLocks sync.Map

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewManager(
	giveaways repositories.GiveawayRepository,
	participants repositories.ParticipantRepository,
	fillPlans repositories.FillPlanRepository,
	client gateway.Client,
	supervisor *tasks.Supervisor,
	cfg Config,
) *Manager {
	return &Manager{
		giveaways:    giveaways,
		participants: participants,
		fillPlans:    fillPlans,
		client:       client,
		supervisor:   supervisor,
		cfg:          cfg,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

type CreateParams struct {
	GuildID     snowflake.ID
	ChannelID   snowflake.ID
	HostID      snowflake.ID
	Prize       string
	WinnerCount int
	Duration    time.Duration
}

// Create posts the announcement message, seeds it with the entry reaction and
// persists the giveaway keyed by the message id.
func (m *Manager) Create(ctx context.Context, params CreateParams) (*models.Giveaway, error) {
	if params.Duration < m.cfg.MinDuration || params.Duration > m.cfg.MaxDuration {
		return nil, ErrInvalidDuration
	}
	if params.WinnerCount < m.cfg.MinWinners || params.WinnerCount > m.cfg.MaxWinners {
		return nil, ErrInvalidWinners
	}

	endTime := time.Now().Add(params.Duration)
	ref, err := m.client.SendMessage(ctx, params.ChannelID, announcementMessage(params.Prize, params.WinnerCount, params.HostID, endTime))
	if err != nil {
		return nil, fmt.Errorf("failed to post giveaway: %w", err)
	}

	g := &models.Giveaway{
		MessageID:   ref.MessageID,
		ChannelID:   params.ChannelID,
		GuildID:     params.GuildID,
		HostID:      params.HostID,
		Prize:       params.Prize,
		WinnerCount: params.WinnerCount,
		Status:      models.GiveawayStatusActive,
		EndTime:     endTime,
	}
	if err := m.giveaways.Create(ctx, g); err != nil {
		// The announcement is already up; take it down so an orphaned
		// message cannot collect entries nothing will ever draw from.
		if delErr := m.client.DeleteMessage(ctx, ref); delErr != nil {
			slog.Error("Failed to remove orphaned giveaway message",
				slog.String("type", "giveaway"),
				slog.Any("error", delErr))
		}
		return nil, fmt.Errorf("failed to persist giveaway: %w", err)
	}

	if err := m.client.AddReaction(ctx, ref, entryEmoji); err != nil {
		slog.Warn("Failed to seed entry reaction",
			slog.String("type", "giveaway"),
			slog.String("message_id", ref.MessageID.String()),
			slog.Any("error", err))
	}

	slog.Info("Giveaway created",
		slog.String("type", "giveaway"),
		slog.String("message_id", g.MessageID.String()),
		slog.String("prize", g.Prize),
		slog.Int("winners", g.WinnerCount),
		slog.Time("end_time", g.EndTime))
	return g, nil
}

// HandleReactionAdd records an entry. Reaction events are delivered
// at-least-once so the insert dedupes on (message, user).
func (m *Manager) HandleReactionAdd(ctx context.Context, messageID, userID snowflake.ID, username string, isBot bool, emoji string) error {
	if isBot || emoji != entryEmoji {
		return nil
	}
	g, err := m.giveaways.GetByMessageID(ctx, messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrGiveawayNotFound) {
			return nil
		}
		return err
	}
	if !g.IsActive() {
		return nil
	}

	added, err := m.participants.Add(ctx, &models.Participant{
		MessageID: messageID,
		UserID:    userID,
		Username:  username,
	})
	if err != nil {
		return err
	}
	if added {
		slog.Debug("Giveaway entry recorded",
			slog.String("type", "giveaway"),
			slog.String("message_id", messageID.String()),
			slog.String("user_id", userID.String()))
	}
	return nil
}

// HandleReactionRemove withdraws an entry while the giveaway is still
// active. Forced entries stay.
func (m *Manager) HandleReactionRemove(ctx context.Context, messageID, userID snowflake.ID, emoji string) error {
	if emoji != entryEmoji {
		return nil
	}
	g, err := m.giveaways.GetByMessageID(ctx, messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrGiveawayNotFound) {
			return nil
		}
		return err
	}
	if !g.IsActive() {
		return nil
	}

	_, err = m.participants.Remove(ctx, messageID, userID)
	return err
}

// ForceWinner registers a guaranteed winner for an active giveaway. Forced
// entries seed the winner set when the giveaway ends.
func (m *Manager) ForceWinner(ctx context.Context, messageID, userID snowflake.ID, username string) error {
	g, err := m.giveaways.GetByMessageID(ctx, messageID)
	if err != nil {
		return err
	}
	if !g.IsActive() {
		return ErrNotActive
	}

	_, err = m.participants.Add(ctx, &models.Participant{
		MessageID: messageID,
		UserID:    userID,
		Username:  username,
		IsForced:  true,
	})
	return err
}

type GuildStats struct {
	ActiveGiveaways int
	TotalGiveaways  int
	TotalEntries    int
}

func (m *Manager) Stats(ctx context.Context, guildID snowflake.ID) (GuildStats, error) {
	active, total, err := m.giveaways.CountByGuild(ctx, guildID)
	if err != nil {
		return GuildStats{}, err
	}
	entries, err := m.participants.CountByGuild(ctx, guildID)
	if err != nil {
		return GuildStats{}, err
	}
	return GuildStats{ActiveGiveaways: active, TotalGiveaways: total, TotalEntries: entries}, nil
}

func (m *Manager) Get(ctx context.Context, messageID snowflake.ID) (*models.Giveaway, error) {
	return m.giveaways.GetByMessageID(ctx, messageID)
}

func (m *Manager) ListActive(ctx context.Context, guildID snowflake.ID) ([]*models.Giveaway, error) {
	return m.giveaways.GetActiveByGuild(ctx, guildID)
}

func (m *Manager) intn(n int) int {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return m.rng.Intn(n)
}

func (m *Manager) shuffle(n int, swap func(i, j int)) {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	m.rng.Shuffle(n, swap)
}

func (m *Manager) jitter() float64 {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return m.rng.Float64()
}

func announcementMessage(prize string, winners int, hostID snowflake.ID, endTime time.Time) discord.MessageCreate {
	return discord.NewMessageCreateBuilder().
		SetEmbeds(discord.NewEmbedBuilder().
			SetTitle("🎉 Giveaway: "+prize).
			SetDescriptionf("React with %s to enter!\n\n**Winners:** %d\n**Hosted by:** <@%d>\n**Ends:** <t:%d:R>",
				entryEmoji, winners, hostID, endTime.Unix()).
			SetColor(0x5865F2).
			Build()).
		Build()
}
