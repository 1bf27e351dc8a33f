// Package main implements the taskhub server and admin CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"taskhub/internal/config"
	"taskhub/internal/db"
	"taskhub/pkg/store"
	"taskhub/pkg/store/memstore"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var configPath string

var rootCmd = &cobra.Command{
	Use:           "taskhub",
	Short:         "Collaborative task tracker with dependency checks and live notifications",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "taskhub.toml", "path to the TOML config file")
}

// setup loads the config and builds the logger every command shares.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newLogger(c config.Log, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return nil, fmt.Errorf("config: log.level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch c.Format {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("config: unknown log.format %q", c.Format)
}

// backend is the selected storage: a unit of work plus pool-level repos.
type backend struct {
	uow   store.UnitOfWork
	repos store.Repos
	pool  *pgxpool.Pool
}

func (b *backend) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
}

// openBackend connects the configured storage and ensures its tables.
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	switch cfg.Storage.Backend {
	case "memory":
		mem := memstore.New()
		logger.Warn("storage: using in-memory backend, data is lost on exit")
		return &backend{uow: mem, repos: mem.Repos()}, nil
	case "postgres":
		pool, err := db.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return nil, err
		}
		repos := store.NewPgRepos(pool)
		if err := store.Migrate(ctx, repos); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("storage: connected to postgres", "max_conns", cfg.Database.MaxConns)
		return &backend{uow: store.NewPgUnitOfWork(pool), repos: repos, pool: pool}, nil
	}
	return nil, errors.New("unknown storage backend " + cfg.Storage.Backend)
}
