package history

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/nexus-paies/fiscal-updater/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	dry_run     BOOLEAN NOT NULL DEFAULT 0,
	changes     INTEGER NOT NULL DEFAULT 0,
	rejected    INTEGER NOT NULL DEFAULT 0,
	errors      TEXT NOT NULL DEFAULT '[]'
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
	old_value REAL NOT NULL,
	new_value REAL NOT NULL,
	source    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_changes_run_id ON changes(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) RecordRun(ctx context.Context, sum *model.RunSummary) error {
	if sum.ID == "" {
		sum.ID = uuid.New().String()
	}
	errs, err := marshalErrors(sum.Errors)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, dry_run, changes, rejected, errors) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sum.ID, sum.StartedAt.UTC(), sum.FinishedAt.UTC(), sum.DryRun, len(sum.Changes), sum.Rejected, errs,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert run %s", sum.ID)
	}

	for i, c := range sum.Changes {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO changes (id, run_id, position, category, field, key, old, new, old_value, new_value, source)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), sum.ID, i, c.Category, c.Field, c.Key, c.Old, c.New, c.OldValue, c.NewValue, c.Source,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert change %s", c.Key)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, dry_run, changes, rejected, errors FROM runs
		 ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var errs string
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.DryRun, &r.ChangeCount, &r.Rejected, &errs); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if r.Errors, err = unmarshalErrors(errs); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) ListChanges(ctx context.Context, runID string) ([]model.Change, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, field, key, old, new, old_value, new_value, source FROM changes
		 WHERE run_id = ? ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list changes %s", runID)
	}
	defer rows.Close()

	var out []model.Change
	for rows.Next() {
		var c model.Change
		if err := rows.Scan(&c.Category, &c.Field, &c.Key, &c.Old, &c.New, &c.OldValue, &c.NewValue, &c.Source); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan change")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list changes iterate")
}
