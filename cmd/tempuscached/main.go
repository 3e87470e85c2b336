// Command tempuscached runs a memcached-text-protocol-compatible
// in-memory cache server, in one of three acceptor variants sharing the
// same LRU backend.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Krishna8167/tempuscached/cache"
	"github.com/Krishna8167/tempuscached/internal/config"
	"github.com/Krishna8167/tempuscached/internal/logging"
	"github.com/Krishna8167/tempuscached/server"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type closer interface {
	Serve() error
	Close() error
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		listenAddr string
		variant    string
		maxSize    int
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "tempuscached",
		Short: "An in-memory, memcached-text-protocol-compatible cache server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = cfg.Apply(
				config.WithListenAddr(listenAddr),
				config.WithVariant(config.Variant(variant)),
				config.WithMaxSize(maxSize),
			)
			return run(cmd.Context(), cfg, logLevel)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a TOML config file")
	cmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (overrides config file)")
	cmd.Flags().StringVar(&variant, "variant", "", "server variant: blocking, reactor, or multireactor")
	cmd.Flags().IntVar(&maxSize, "max-size", 0, "max cache size in bytes (overrides config file)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	return cmd
}

func run(ctx context.Context, cfg config.Config, logLevel string) error {
	logger := logging.New(logLevel)

	lru := cache.New(cfg.MaxSize, cache.WithLogger(logger))
	storage := cache.NewLockedStorage(lru)

	srv, err := newServer(cfg, storage, logger)
	if err != nil {
		return fmt.Errorf("start %s server: %w", cfg.Variant, err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()

	logger.Info().Str("variant", string(cfg.Variant)).Str("addr", cfg.ListenAddr).Msg("tempuscached listening")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		return srv.Close()
	case err := <-errCh:
		return err
	}
}

func newServer(cfg config.Config, storage cache.Storage, logger zerolog.Logger) (closer, error) {
	switch cfg.Variant {
	case config.VariantBlocking:
		return server.NewBlocking(cfg.ListenAddr, cfg.MaxConnections, storage, logger)
	case config.VariantMultiReactor:
		return server.NewMultiReactor(cfg.ListenAddr, cfg.ReactorCount, storage, logger)
	case config.VariantReactor, "":
		return server.NewReactor(cfg.ListenAddr, storage, logger)
	default:
		return nil, fmt.Errorf("unknown server variant %q", cfg.Variant)
	}
}
