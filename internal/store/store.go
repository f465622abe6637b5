// Package store persists evaluation reports to PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/plugin-eval/internal/pipeline"
)

// DBPool abstracts pgxpool.Pool so tests can use pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Schema creates the tables the store writes to.
const Schema = `
CREATE TABLE IF NOT EXISTS eval_runs (
    id            UUID PRIMARY KEY,
    plugin        TEXT NOT NULL,
    target_model  TEXT NOT NULL,
    started_at    TIMESTAMPTZ NOT NULL,
    finished_at   TIMESTAMPTZ NOT NULL,
    total         INTEGER NOT NULL,
    passed        INTEGER NOT NULL,
    failed        INTEGER NOT NULL,
    errored       INTEGER NOT NULL,
    input_tokens  INTEGER NOT NULL,
    output_tokens INTEGER NOT NULL,
    total_cost    DOUBLE PRECISION NOT NULL,
    summary       JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS eval_results (
    run_id          UUID NOT NULL REFERENCES eval_runs(id) ON DELETE CASCADE,
    scenario_id     UUID NOT NULL,
    component       TEXT NOT NULL,
    origin          TEXT NOT NULL,
    user_message    TEXT NOT NULL,
    expected        TEXT NOT NULL,
    status          TEXT NOT NULL,
    triggered       BOOLEAN NOT NULL,
    input_tokens    INTEGER NOT NULL,
    output_tokens   INTEGER NOT NULL,
    usage_estimated BOOLEAN NOT NULL,
    cost            DOUBLE PRECISION NOT NULL,
    elapsed_ms      BIGINT NOT NULL,
    attempts        INTEGER NOT NULL,
    error_kind      TEXT,
    error_message   TEXT,
    PRIMARY KEY (run_id, scenario_id)
);
CREATE TABLE IF NOT EXISTS eval_errors (
    run_id      UUID NOT NULL REFERENCES eval_runs(id) ON DELETE CASCADE,
    seq         INTEGER NOT NULL,
    stage       TEXT NOT NULL,
    kind        TEXT NOT NULL,
    component   TEXT,
    scenario_id TEXT,
    message     TEXT NOT NULL,
    PRIMARY KEY (run_id, seq)
);`

const sqlInsertRun = `
        INSERT INTO eval_runs (id, plugin, target_model, started_at, finished_at, total, passed, failed, errored, input_tokens, output_tokens, total_cost, summary)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        ON CONFLICT (id) DO UPDATE SET
            finished_at = EXCLUDED.finished_at,
            total = EXCLUDED.total,
            passed = EXCLUDED.passed,
            failed = EXCLUDED.failed,
            errored = EXCLUDED.errored,
            input_tokens = EXCLUDED.input_tokens,
            output_tokens = EXCLUDED.output_tokens,
            total_cost = EXCLUDED.total_cost,
            summary = EXCLUDED.summary;
    `

const sqlInsertError = `
        INSERT INTO eval_errors (run_id, seq, stage, kind, component, scenario_id, message)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (run_id, seq) DO NOTHING;
    `

var resultColumns = []string{
	"run_id", "scenario_id", "component", "origin", "user_message", "expected", "status", "triggered",
	"input_tokens", "output_tokens", "usage_estimated", "cost", "elapsed_ms", "attempts", "error_kind", "error_message",
}

// Store writes reports to PostgreSQL.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a store and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool, log: logger.Named("store")}, nil
}

// EnsureSchema creates missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// PersistReport writes the run, its results and its errors in one transaction.
func (s *Store) PersistReport(ctx context.Context, report *pipeline.Report) error {
	if report == nil {
		return errors.New("cannot persist a nil report")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if err := s.persistRun(ctx, tx, report); err != nil {
		return err
	}
	if len(report.Results) > 0 {
		if err := s.persistResults(ctx, tx, report); err != nil {
			return err
		}
	}
	if len(report.Errors) > 0 {
		if err := s.persistErrors(ctx, tx, report); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Info("Report persisted.", zap.String("run_id", report.RunID), zap.Int("results", len(report.Results)))
	return nil
}

func (s *Store) persistRun(ctx context.Context, tx pgx.Tx, r *pipeline.Report) error {
	summary, err := json.Marshal(r.Summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	sum := r.Summary
	_, err = tx.Exec(ctx, sqlInsertRun,
		r.RunID, r.Plugin, r.TargetModel, r.StartedAt.UTC(), r.FinishedAt.UTC(),
		sum.Total, sum.Passed, sum.Failed, sum.Errored, sum.InputTokens, sum.OutputTokens, sum.TotalCost,
		summary)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

func (s *Store) persistResults(ctx context.Context, tx pgx.Tx, r *pipeline.Report) error {
	rows := make([][]any, len(r.Results))
	for i, res := range r.Results {
		var kind, msg *string
		if res.Error != nil {
			k, m := string(res.Error.Kind), res.Error.Error()
			kind, msg = &k, &m
		}
		sc := res.Scenario
		rows[i] = []any{
			r.RunID, sc.ID, sc.Component.String(), string(sc.Origin), sc.UserMessage, string(sc.Expected),
			string(res.Status), res.Triggered,
			res.Usage.InputTokens, res.Usage.OutputTokens, res.UsageEstimated, res.Cost,
			res.Elapsed.Milliseconds(), res.Attempts, kind, msg,
		}
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"eval_results"}, resultColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy results: %w", err)
	}
	if int(n) != len(rows) {
		return fmt.Errorf("mismatch in copied results count: expected %d, got %d", len(rows), n)
	}
	return nil
}

func (s *Store) persistErrors(ctx context.Context, tx pgx.Tx, r *pipeline.Report) error {
	batch := &pgx.Batch{}
	for i, e := range r.Errors {
		batch.Queue(sqlInsertError, r.RunID, i, e.Stage, e.Kind, nullable(e.Component), nullable(e.ScenarioID), e.Message)
	}

	br := tx.SendBatch(ctx, batch)
	if br == nil {
		return fmt.Errorf("failed to send batch: batch results is nil")
	}
	defer func() {
		_ = br.Close()
	}()

	for i := range r.Errors {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert run error %d: %w", i, err)
		}
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// RunSummary is one row of eval_runs.
type RunSummary struct {
	RunID       string
	Plugin      string
	TargetModel string
	StartedAt   time.Time
	Total       int
	Passed      int
	TotalCost   float64
}

// RecentRuns lists the latest runs for a plugin, newest first.
func (s *Store) RecentRuns(ctx context.Context, plugin string, limit int) ([]RunSummary, error) {
	query := `
        SELECT id::text, plugin, target_model, started_at, total, passed, total_cost
        FROM eval_runs
        WHERE plugin = $1
        ORDER BY started_at DESC
        LIMIT $2;
    `
	rows, err := s.pool.Query(ctx, query, plugin, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.Plugin, &r.TargetModel, &r.StartedAt, &r.Total, &r.Passed, &r.TotalCost); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return runs, nil
}
