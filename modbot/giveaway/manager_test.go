package giveaway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sukoonbot/sukoon/modbot/database/models"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MinDuration = time.Millisecond
	cfg.TickInterval = 10 * time.Millisecond
	return cfg
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(testConfig())
	ctx := context.Background()

	tests := []struct {
		name    string
		params  CreateParams
		wantErr error
	}{
		{
			name:    "duration too short",
			params:  CreateParams{ChannelID: 100, Prize: "x", WinnerCount: 1, Duration: 0},
			wantErr: ErrInvalidDuration,
		},
		{
			name:    "duration too long",
			params:  CreateParams{ChannelID: 100, Prize: "x", WinnerCount: 1, Duration: 400 * 24 * time.Hour},
			wantErr: ErrInvalidDuration,
		},
		{
			name:    "zero winners",
			params:  CreateParams{ChannelID: 100, Prize: "x", WinnerCount: 0, Duration: time.Hour},
			wantErr: ErrInvalidWinners,
		},
		{
			name:    "too many winners",
			params:  CreateParams{ChannelID: 100, Prize: "x", WinnerCount: 50, Duration: time.Hour},
			wantErr: ErrInvalidWinners,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.manager.Create(ctx, tt.params)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if len(env.client.sentMessages) != 0 {
		t.Errorf("rejected creates must not post messages, sent %d", len(env.client.sentMessages))
	}
}

func TestCreatePersistsAndSeedsReaction(t *testing.T) {
	env := newTestEnv(testConfig())
	ctx := context.Background()

	g, err := env.manager.Create(ctx, CreateParams{
		GuildID:     200,
		ChannelID:   100,
		HostID:      300,
		Prize:       "nitro",
		WinnerCount: 2,
		Duration:    time.Hour,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	stored, err := env.giveaways.GetByMessageID(ctx, g.MessageID)
	if err != nil {
		t.Fatalf("giveaway not persisted: %v", err)
	}
	if !stored.IsActive() {
		t.Errorf("new giveaway status = %s, want active", stored.Status)
	}
	if len(env.client.reactions) != 1 || env.client.reactions[0] != entryEmoji {
		t.Errorf("entry reaction not seeded, got %v", env.client.reactions)
	}
}

func TestCreateDeletesOrphanedMessage(t *testing.T) {
	env := newTestEnv(testConfig())
	env.manager.giveaways = &failingGiveawayRepo{fakeGiveawayRepo: env.giveaways}

	_, err := env.manager.Create(context.Background(), CreateParams{
		ChannelID:   100,
		Prize:       "x",
		WinnerCount: 1,
		Duration:    time.Hour,
	})
	if err == nil {
		t.Fatal("Create() should fail when persistence fails")
	}
	if len(env.client.deletedRefs) != 1 {
		t.Errorf("orphaned message not deleted, deletions = %d", len(env.client.deletedRefs))
	}
}

func TestReactionAddDedupes(t *testing.T) {
	env := newTestEnv(testConfig())
	ctx := context.Background()
	env.seedGiveaway(1000, 1, time.Hour)

	for i := 0; i < 3; i++ {
		if err := env.manager.HandleReactionAdd(ctx, 1000, 42, "alice", false, entryEmoji); err != nil {
			t.Fatalf("HandleReactionAdd() error = %v", err)
		}
	}

	count, _ := env.participants.Count(ctx, 1000)
	if count != 1 {
		t.Errorf("duplicate reactions recorded %d entries, want 1", count)
	}
}

func TestReactionAddIgnoresBotsAndWrongEmoji(t *testing.T) {
	env := newTestEnv(testConfig())
	ctx := context.Background()
	env.seedGiveaway(1000, 1, time.Hour)

	if err := env.manager.HandleReactionAdd(ctx, 1000, 42, "bot", true, entryEmoji); err != nil {
		t.Fatalf("bot reaction error = %v", err)
	}
	if err := env.manager.HandleReactionAdd(ctx, 1000, 42, "alice", false, "👍"); err != nil {
		t.Fatalf("wrong emoji error = %v", err)
	}
	if err := env.manager.HandleReactionAdd(ctx, 7777, 42, "alice", false, entryEmoji); err != nil {
		t.Fatalf("unknown message error = %v", err)
	}

	count, _ := env.participants.Count(ctx, 1000)
	if count != 0 {
		t.Errorf("recorded %d entries, want 0", count)
	}
}

func TestReactionRemoveKeepsForcedEntries(t *testing.T) {
	env := newTestEnv(testConfig())
	ctx := context.Background()
	env.seedGiveaway(1000, 1, time.Hour)

	if err := env.manager.ForceWinner(ctx, 1000, 42, "alice"); err != nil {
		t.Fatalf("ForceWinner() error = %v", err)
	}
	if err := env.manager.HandleReactionRemove(ctx, 1000, 42, entryEmoji); err != nil {
		t.Fatalf("HandleReactionRemove() error = %v", err)
	}

	count, _ := env.participants.Count(ctx, 1000)
	if count != 1 {
		t.Errorf("forced entry was removed, count = %d, want 1", count)
	}
}

func TestForceWinnerRequiresActiveGiveaway(t *testing.T) {
	env := newTestEnv(testConfig())
	ctx := context.Background()
	g := env.seedGiveaway(1000, 1, time.Hour)
	_, _ = env.giveaways.MarkCancelled(ctx, g.MessageID, "done", 1)

	if err := env.manager.ForceWinner(ctx, 1000, 42, "alice"); !errors.Is(err, ErrNotActive) {
		t.Errorf("ForceWinner() error = %v, want ErrNotActive", err)
	}
}

func TestStats(t *testing.T) {
	env := newTestEnv(testConfig())
	ctx := context.Background()
	env.seedGiveaway(1000, 1, time.Hour)
	env.seedGiveaway(1001, 1, time.Hour)
	_, _ = env.giveaways.MarkCancelled(ctx, 1001, "", 1)
	env.enter(1000, 42, "alice")

	stats, err := env.manager.Stats(ctx, 200)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.ActiveGiveaways != 1 || stats.TotalGiveaways != 2 || stats.TotalEntries != 1 {
		t.Errorf("Stats() = %+v, want 1 active, 2 total, 1 entry", stats)
	}
}

type failingGiveawayRepo struct {
	*fakeGiveawayRepo
}

func (r *failingGiveawayRepo) Create(ctx context.Context, g *models.Giveaway) error {
	return errors.New("insert failed")
}
