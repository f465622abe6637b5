package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xkilldash9x/plugin-eval/internal/config"
	"github.com/xkilldash9x/plugin-eval/internal/observability"
	"github.com/xkilldash9x/plugin-eval/internal/pipeline"
	"github.com/xkilldash9x/plugin-eval/internal/store"
)

// reportStore is the part of store.Store the commands use.
type reportStore interface {
	EnsureSchema(ctx context.Context) error
	PersistReport(ctx context.Context, report *pipeline.Report) error
	RecentRuns(ctx context.Context, plugin string, limit int) ([]store.RunSummary, error)
}

// storeProvider creates a reportStore. Tests inject a fake in place of a
// live database connection.
type storeProvider interface {
	Create(ctx context.Context, cfg config.Interface) (reportStore, func(), error)
}

type defaultStoreProvider struct{}

// NewStoreProvider returns the production provider backed by pgxpool.
func NewStoreProvider() storeProvider {
	return &defaultStoreProvider{}
}

// Create connects to PostgreSQL and returns the store with a cleanup
// function that closes the pool.
func (p *defaultStoreProvider) Create(ctx context.Context, cfg config.Interface) (reportStore, func(), error) {
	logger := observability.GetLogger()
	if cfg.Database().URL == "" {
		return nil, nil, fmt.Errorf("database URL is not configured (PLUGIN_EVAL_DATABASE_URL)")
	}

	pool, err := pgxpool.New(ctx, cfg.Database().URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize store service: %w", err)
	}

	cleanup := func() {
		pool.Close()
		logger.Debug("Database connection pool closed.")
	}
	return s, cleanup, nil
}
