package modbot

import (
	"context"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	disgogateway "github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/paginator"
	"golang.org/x/sync/errgroup"

	"github.com/sukoonbot/sukoon/modbot/database"
	"github.com/sukoonbot/sukoon/modbot/database/transcripts"
	"github.com/sukoonbot/sukoon/modbot/gateway"
	"github.com/sukoonbot/sukoon/modbot/giveaway"
	"github.com/sukoonbot/sukoon/modbot/notify"
	"github.com/sukoonbot/sukoon/modbot/quarantine"
	"github.com/sukoonbot/sukoon/modbot/tasks"
)

func New(cfg Config, version string, commit string) *Bot {
	return &Bot{
		Cfg:        cfg,
		Paginator:  paginator.New(),
		Version:    version,
		Commit:     commit,
		Supervisor: tasks.NewSupervisor(),
	}
}

type Bot struct {
	Cfg         Config
	Client      bot.Client
	Paginator   *paginator.Manager
	Version     string
	Commit      string
	DB          *database.DB
	Transcripts *transcripts.Store
	Supervisor  *tasks.Supervisor
	Gateway     gateway.Client
	Giveaways   *giveaway.Manager
	Quarantine  *quarantine.Manager
	Notifier    *notify.Notifier
}

func (b *Bot) SetupBot(listeners ...bot.EventListener) error {
	client, err := disgo.New(b.Cfg.Bot.Token,
		bot.WithGatewayConfigOpts(disgogateway.WithIntents(
			disgogateway.IntentGuilds,
			disgogateway.IntentGuildMembers,
			disgogateway.IntentGuildMessages,
			disgogateway.IntentGuildMessageReactions,
			disgogateway.IntentMessageContent,
		)),
		bot.WithCacheConfigOpts(cache.WithCaches(cache.FlagGuilds, cache.FlagRoles, cache.FlagChannels)),
		bot.WithEventListeners(b.Paginator),
		bot.WithEventListeners(listeners...),
	)
	if err != nil {
		return err
	}

	b.Client = client
	b.Gateway = gateway.NewDisgoClient(client)
	return nil
}

// Recover resumes persisted background obligations before the gateway opens:
// overdue DM deletions execute, future ones reschedule, and in-flight fill
// plans restart from their persisted remaining count.
func (b *Bot) Recover(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return b.Notifier.Recover(ctx)
	})
	g.Go(func() error {
		return b.Giveaways.ResumeFillPlans(ctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("Startup recovery complete",
		slog.String("type", "sys"),
		slog.Int("background_tasks", b.Supervisor.Count()))
	return nil
}

func (b *Bot) OnReady(_ *events.Ready) {
	slog.Info("Sukoon is now ready",
		slog.String("version", b.Version),
		slog.String("commit", b.Commit))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.Client.SetPresence(ctx,
		disgogateway.WithWatchingActivity("the jail channel"),
		disgogateway.WithOnlineStatus(discord.OnlineStatusOnline)); err != nil {
		slog.Error("Failed to set presence", slog.Any("error", err))
	}
}
