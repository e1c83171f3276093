package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/keshon/muse/internal/command"
	"github.com/keshon/muse/internal/command/music"
	"github.com/keshon/muse/internal/config"
	"github.com/keshon/muse/internal/discord"
	"github.com/keshon/muse/internal/logging"
	"github.com/keshon/muse/internal/music/cache"
	"github.com/keshon/muse/internal/music/events"
	"github.com/keshon/muse/internal/music/node"
	"github.com/keshon/muse/internal/music/player"
	"github.com/keshon/muse/internal/music/resolver"
	"github.com/keshon/muse/internal/music/track"
	"github.com/keshon/muse/internal/storage"
	"github.com/keshon/muse/pkg/jobmgr"
	"github.com/rs/zerolog"
)

const appName = "muse"

func main() {
	loadedEnv := config.LoadDotEnv()

	cfg, err := config.New()
	if err != nil {
		logging.New(logging.Options{}).Fatal().Err(err).Msg("invalid configuration")
	}
	logger := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if !loadedEnv {
		logger.Debug().Msg("no .env file loaded, using process environment")
	}
	if err := cfg.ValidateBot(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("bot stopped")
	}
	logger.Info().Msg("Discord bot exited cleanly")
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	logger.Info().Str("app", appName).Msg("starting bot")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(storage.Options{
		Driver: cfg.StorageDriver,
		Path:   cfg.StoragePath,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close storage")
		}
	}()

	nodeClient := node.New(node.Config{
		Host:         cfg.LavalinkHost,
		Port:         cfg.LavalinkPort,
		Password:     cfg.LavalinkPassword,
		Secure:       cfg.LavalinkSecure,
		ReadyTimeout: cfg.NodeReadyTimeout,
		Logger:       logger,
	})
	players := player.NewRegistry(nodeClient, store, logger)
	defer players.Teardown()

	results := cache.New[[]*track.Track](cfg.SearchCacheTTL, cfg.SearchCacheSize)
	res := resolver.New(nodeClient, results, logger)
	bridge := events.NewBridge(players, resolver.NewAdvisor(res, logger), nodeClient.VoiceChannel, logger)

	b, err := discord.NewBot(cfg, store, nodeClient, players, logger)
	if err != nil {
		return err
	}
	command.Register(
		&music.MusicCommand{Bot: b, Search: res},
		command.WithGuildOnly,
		command.WithCommandLogger,
	)

	// The node jobs outlive the Discord session so the bot can still leave
	// voice channels while shutting down; they are stopped by name below.
	jobs := jobmgr.NewManager(logger)
	_ = jobs.StartAsync(context.Background(), "node", nodeClient.Run)
	_ = jobs.StartAsync(ctx, "search-cache-janitor", func(ctx context.Context) error {
		cache.RunJanitor(ctx, results, cfg.SearchCacheTTL)
		return nil
	})
	_ = jobs.StartAsync(context.Background(), "event-bridge", func(ctx context.Context) error {
		bridge.Run(ctx, nodeClient.Events())
		return nil
	})
	logger.Debug().Msg(jobs.Status())

	err = b.Run(ctx)
	stop()
	for _, name := range []string{"event-bridge", "node"} {
		if stopErr := jobs.Stop(name); stopErr != nil {
			logger.Debug().Err(stopErr).Msg("job already finished")
		}
	}
	jobs.Wait()
	return err
}
