// Command streamctl is the main entrypoint for the chat remote-control backend.
// It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations.
//   - Builds the command registry, cooldown tracker, and alias table, and
//     regenerates the on-disk command listing.
//   - Starts the chat source (Bilibili history poller or Twitch IRC) feeding
//     the dispatcher.
//   - Exposes a minimal HTTP server with /healthz, /status, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/streamctl/alias"
	"github.com/onnwee/streamctl/biliapi"
	"github.com/onnwee/streamctl/chat"
	"github.com/onnwee/streamctl/command"
	"github.com/onnwee/streamctl/config"
	"github.com/onnwee/streamctl/db"
	"github.com/onnwee/streamctl/server"
	"github.com/onnwee/streamctl/telemetry"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load(".env")

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	var handler slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()

	shutdownTracing, err := telemetry.InitTracing("streamctl", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	database, err := db.Connect()
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()
	if err := db.Migrate(context.Background(), database); err != nil {
		slog.Error("failed to migrate db", slog.Any("err", err))
		os.Exit(1)
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bili := &biliapi.Client{RoomID: cfg.RoomID}
	store := &db.Store{DB: database, Room: room(cfg)}

	poller := &chat.Poller{
		Source:     bili,
		Room:       cfg.RoomID,
		Prefix:     cfg.Prefix,
		Interval:   cfg.PollInterval,
		StaleAfter: cfg.StaleAfter,
		Store:      store,
	}

	registry, err := command.NewRegistry(hostCommands(bili, poller)...)
	if err != nil {
		slog.Error("failed to build command registry", slog.Any("err", err))
		os.Exit(1)
	}

	tracker := command.NewTracker(registry)
	if err := command.ConfigureCooldowns(registry, tracker, cfg.CooldownPath()); err != nil {
		slog.Error("failed to configure cooldowns", slog.Any("err", err))
		os.Exit(1)
	}

	aliases, err := alias.Load(cfg.AliasPath(), registry.Names())
	if err != nil {
		slog.Error("failed to load alias table", slog.Any("err", err))
		os.Exit(1)
	}
	poller.Aliases = aliases

	if err := command.WriteHelpFile(cfg.HelpPath(), cfg.Prefix, registry); err != nil {
		slog.Warn("failed to write command listing", slog.Any("err", err))
	}

	dispatcher := &command.Dispatcher{
		Prefix:   cfg.Prefix,
		Registry: registry,
		Tracker:  tracker,
		Policy:   command.NewPolicy(cfg.AdminUsers, cfg.BannedUsers, cfg.BlacklistedCommands),
		Audit:    store,
	}

	onFresh := func(author, text string) {
		slog.Debug("chat message", slog.String("author", author), slog.String("text", text))
		dispatcher.Handle(ctx, author, text)
	}

	switch cfg.ChatSource {
	case "twitch":
		if err := cfg.ValidateTwitchReady(); err != nil {
			slog.Error("twitch source not ready", slog.Any("err", err))
			os.Exit(1)
		}
		go chat.StartTwitchSource(ctx, cfg.TwitchChannel, cfg.TwitchBotUsername, cfg.TwitchOAuthToken, cfg.Prefix, aliases, store, onFresh)
	default:
		if err := cfg.ValidateRoomReady(); err != nil {
			slog.Error("bilibili source not ready", slog.Any("err", err))
			os.Exit(1)
		}
		poller.OnFreshMessage = onFresh
		poller.OnClientError = func(msg string) {
			slog.Warn("chat client error", slog.String("msg", msg))
		}
		go poller.Run(ctx)
	}

	if err := db.SetKV(ctx, database, "last_start", time.Now().UTC().Format(time.RFC3339)); err != nil {
		slog.Warn("failed to record start time", slog.Any("err", err))
	}

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	deps := server.Deps{
		DB:         database,
		Room:       room(cfg),
		Prefix:     cfg.Prefix,
		Registry:   registry,
		BacklogLen: poller.BacklogLen,
		StartedAt:  time.Now(),
	}
	go func() {
		if err := server.Start(ctx, deps, addr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
}

// room returns the identifier chat rows are keyed by, whichever source is active.
func room(cfg *config.Config) string {
	if cfg.ChatSource == "twitch" {
		return cfg.TwitchChannel
	}
	return cfg.RoomID
}
