package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/handler"
	"github.com/sukoonbot/sukoon/modbot"
	"github.com/sukoonbot/sukoon/modbot/commands"
	"github.com/sukoonbot/sukoon/modbot/database"
	"github.com/sukoonbot/sukoon/modbot/database/repositories"
	"github.com/sukoonbot/sukoon/modbot/database/transcripts"
	"github.com/sukoonbot/sukoon/modbot/giveaway"
	"github.com/sukoonbot/sukoon/modbot/handlers"
	"github.com/sukoonbot/sukoon/modbot/logger"
	"github.com/sukoonbot/sukoon/modbot/notify"
	"github.com/sukoonbot/sukoon/modbot/quarantine"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	slog.SetDefault(slog.New(logger.NewHandler(slog.LevelInfo)))

	slog.Info("Starting Sukoon",
		slog.String("version", version),
		slog.String("commit", commit))

	shouldSyncCommands := flag.Bool("sync-commands", false, "Whether to sync commands to discord")
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := modbot.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}
	slog.SetDefault(slog.New(logger.NewHandler(cfg.Log.Level)))
	slog.Info("Configuration loaded successfully")

	dbStartTime := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		slog.Error("Database connection failed",
			slog.Any("error", err),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}
	defer db.Close()

	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize database schema", slog.Any("error", err))
		os.Exit(-1)
	}
	slog.Info("Database ready",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStartTime)))

	transcriptStore, err := transcripts.New(ctx, cfg.Mongo, cfg.Moderation.TranscriptRetention)
	if err != nil {
		slog.Error("Transcript store connection failed", slog.Any("error", err))
		os.Exit(-1)
	}
	defer transcriptStore.Close(context.Background())

	b := modbot.New(*cfg, version, commit)
	b.DB = db
	b.Transcripts = transcriptStore

	if err = b.SetupBot(); err != nil {
		slog.Error("Failed to setup bot",
			slog.String("type", "sys"),
			slog.Any("error", err))
		os.Exit(-1)
	}

	giveawayRepo := repositories.NewGiveawayRepository(db.BunDB())
	participantRepo := repositories.NewParticipantRepository(db.BunDB())
	fillPlanRepo := repositories.NewFillPlanRepository(db.BunDB())
	muteRepo := repositories.NewMuteRepository(db.BunDB())
	appealRepo := repositories.NewAppealRepository(db.BunDB())
	counterRepo := repositories.NewCounterRepository(db.BunDB())
	guildConfigRepo := repositories.NewGuildConfigRepository(db.BunDB())
	pendingDeleteRepo := repositories.NewPendingDeleteRepository(db.BunDB())

	b.Notifier = notify.New(pendingDeleteRepo, b.Gateway, b.Supervisor)
	b.Giveaways = giveaway.NewManager(giveawayRepo, participantRepo, fillPlanRepo, b.Gateway, b.Supervisor, cfg.Giveaway)
	b.Quarantine = quarantine.NewManager(muteRepo, appealRepo, counterRepo, guildConfigRepo,
		transcriptStore, b.Notifier, b.Gateway, b.Supervisor, cfg.Moderation)

	h := handler.New()

	// Giveaway commands
	h.Command("/giveaway", handlers.WrapWithLogging("giveaway", commands.GiveawayHandler(b)))
	h.Command("/reroll", handlers.WrapWithLogging("reroll", commands.RerollHandler(b)))
	h.Command("/fill-giveaway", handlers.WrapWithLogging("fill-giveaway", commands.FillGiveawayHandler(b)))
	h.Command("/force-winner", handlers.WrapWithLogging("force-winner", commands.ForceWinnerHandler(b)))
	h.Command("/cancel-giveaway", handlers.WrapWithLogging("cancel-giveaway", commands.CancelGiveawayHandler(b)))
	h.Command("/giveaway-stats", handlers.WrapWithLogging("giveaway-stats", commands.GiveawayStatsHandler(b)))

	// Moderation commands
	h.Command("/mute", handlers.WrapWithLogging("mute", commands.MuteHandler(b)))
	h.Command("/unmute", handlers.WrapWithLogging("unmute", commands.UnmuteHandler(b)))
	h.Command("/mutelist", handlers.WrapWithLogging("mutelist", commands.MuteListHandler(b)))
	h.Command("/clearmutes", handlers.WrapWithLogging("clearmutes", commands.ClearMutesHandler(b)))
	h.Command("/setup-mute", handlers.WrapWithLogging("setup-mute", commands.SetupMuteHandler(b)))
	h.Command("/check-muteperms", handlers.WrapWithLogging("check-muteperms", commands.CheckMutePermsHandler(b)))
	h.Command("/reapply-mute-perms", handlers.WrapWithLogging("reapply-mute-perms", commands.ReapplyMutePermsHandler(b)))
	h.Command("/case", handlers.WrapWithLogging("case", commands.CaseHandler(b)))
	h.Autocomplete("/case", commands.CaseAutocomplete(b))
	h.Command("/jailhistory", handlers.WrapWithLogging("jailhistory", commands.JailHistoryHandler(b)))

	// Appeals
	h.Command("/appeal", handlers.WrapWithLogging("appeal", commands.AppealHandler(b)))
	h.Component("/appeal-approve/", handlers.WrapComponentWithLogging("appeal-approve", commands.AppealReviewComponent(b, true)))
	h.Component("/appeal-deny/", handlers.WrapComponentWithLogging("appeal-deny", commands.AppealReviewComponent(b, false)))

	b.Client.AddEventListeners(
		h,
		bot.NewListenerFunc(b.OnReady),
		handlers.ReactionAddHandler(b.Giveaways),
		handlers.ReactionRemoveHandler(b.Giveaways),
		handlers.JailMessageHandler(b.Quarantine),
	)

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		b.Supervisor.Shutdown(10 * time.Second)
		b.Client.Close(ctx)
	}()

	if *shouldSyncCommands {
		slog.Info("Syncing commands",
			slog.String("type", "sys"),
			slog.Any("guild_ids", cfg.Bot.DevGuilds))
		if err = handler.SyncCommands(b.Client, commands.Commands, cfg.Bot.DevGuilds); err != nil {
			slog.Error("Failed to sync commands",
				slog.String("type", "sys"),
				slog.Any("error", err),
				slog.String("error_details", fmt.Sprintf("%+v", err)))
		}
	}

	recoverCtx, recoverCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := b.Recover(recoverCtx); err != nil {
		recoverCancel()
		slog.Error("Startup recovery failed", slog.Any("error", err))
		os.Exit(-1)
	}
	recoverCancel()

	b.Giveaways.StartScheduler()
	b.Quarantine.StartScheduler()

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = b.Client.OpenGateway(ctx); err != nil {
		slog.Error("Failed to open gateway",
			slog.String("type", "sys"),
			slog.Any("error", err))
		os.Exit(-1)
	}

	slog.Info("Bot is running. Press CTRL-C to exit.")
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
	<-s
	slog.Info("Shutting down bot...")
}
