package history

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/nexus-paies/fiscal-updater/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a small connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 2
	pgxCfg.MaxConnIdleTime = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	dry_run     BOOLEAN NOT NULL DEFAULT false,
	changes     INTEGER NOT NULL DEFAULT 0,
	rejected    INTEGER NOT NULL DEFAULT 0,
	errors      JSONB NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS changes (
	id        TEXT PRIMARY KEY,
	run_id    TEXT NOT NULL REFERENCES runs(id),
	position  INTEGER NOT NULL,
	category  TEXT NOT NULL,
	field     TEXT NOT NULL,
	key       TEXT NOT NULL,
	old       TEXT NOT NULL,
	new       TEXT NOT NULL,
	old_value DOUBLE PRECISION NOT NULL,
	new_value DOUBLE PRECISION NOT NULL,
	source    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_changes_run_id ON changes(run_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) RecordRun(ctx context.Context, sum *model.RunSummary) error {
	if sum.ID == "" {
		sum.ID = uuid.New().String()
	}
	errs, err := marshalErrors(sum.Errors)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin")
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO runs (id, started_at, finished_at, dry_run, changes, rejected, errors) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sum.ID, sum.StartedAt.UTC(), sum.FinishedAt.UTC(), sum.DryRun, len(sum.Changes), sum.Rejected, errs,
	)
	if err != nil {
		_ = tx.Rollback(ctx)
		return eris.Wrapf(err, "postgres: insert run %s", sum.ID)
	}

	for i, c := range sum.Changes {
		_, err = tx.Exec(ctx,
			`INSERT INTO changes (id, run_id, position, category, field, key, old, new, old_value, new_value, source)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			uuid.New().String(), sum.ID, i, c.Category, c.Field, c.Key, c.Old, c.New, c.OldValue, c.NewValue, c.Source,
		)
		if err != nil {
			_ = tx.Rollback(ctx)
			return eris.Wrapf(err, "postgres: insert change %s", c.Key)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit")
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, started_at, finished_at, dry_run, changes, rejected, errors::text FROM runs
		 ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var errs string
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.DryRun, &r.ChangeCount, &r.Rejected, &errs); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if r.Errors, err = unmarshalErrors(errs); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) ListChanges(ctx context.Context, runID string) ([]model.Change, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT category, field, key, old, new, old_value, new_value, source FROM changes
		 WHERE run_id = $1 ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list changes %s", runID)
	}
	defer rows.Close()

	var out []model.Change
	for rows.Next() {
		var c model.Change
		if err := rows.Scan(&c.Category, &c.Field, &c.Key, &c.Old, &c.New, &c.OldValue, &c.NewValue, &c.Source); err != nil {
			return nil, eris.Wrap(err, "postgres: scan change")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list changes iterate")
}
