package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/keshon/muse/internal/cli"
	"github.com/keshon/muse/internal/config"
	"github.com/keshon/muse/internal/logging"
	"github.com/keshon/muse/internal/music/node"
	"github.com/keshon/muse/internal/music/resolver"
	"github.com/keshon/muse/internal/storage"
)

func main() {
	config.LoadDotEnv()
	cfg, err := config.New()
	if err != nil {
		logging.New(logging.Options{}).Fatal().Err(err).Msg("invalid configuration")
	}
	logger := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Out: os.Stdout,
		Err: os.Stderr,
		OpenStore: func() (storage.Backend, error) {
			return storage.Open(storage.Options{
				Driver:   cfg.StorageDriver,
				Path:     cfg.StoragePath,
				ReadOnly: true,
				Logger:   logger,
			})
		},
		NewSearcher: func(ctx context.Context) (cli.Searcher, error) {
			if cfg.LavalinkUserID == "" {
				return nil, errors.New("LAVALINK_USER_ID must be set to open a node session")
			}
			client := node.New(node.Config{
				Host:         cfg.LavalinkHost,
				Port:         cfg.LavalinkPort,
				Password:     cfg.LavalinkPassword,
				Secure:       cfg.LavalinkSecure,
				UserID:       cfg.LavalinkUserID,
				ClientName:   "muse-cli/1.0",
				ReadyTimeout: cfg.NodeReadyTimeout,
				Logger:       logger,
			})
			go func() {
				if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Debug().Err(err).Msg("node session ended")
				}
			}()
			return resolver.New(client, nil, logger), nil
		},
	}

	code := cli.Execute(ctx, app, os.Args[1:])
	stop()
	os.Exit(code)
}
