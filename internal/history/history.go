// Package history keeps an audit trail of update runs and the changes they recorded.
package history

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/nexus-paies/fiscal-updater/internal/model"
)

// Run is a stored run summary.
type Run struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	DryRun      bool      `json:"dry_run"`
	ChangeCount int       `json:"change_count"`
	Rejected    int       `json:"rejected"`
	Errors      []string  `json:"errors"`
}

// Failed reports whether the run recorded errors.
func (r Run) Failed() bool { return len(r.Errors) > 0 }

// Store defines the persistence interface for run history.
type Store interface {
	// RecordRun stores the summary and its changes atomically.
	RecordRun(ctx context.Context, s *model.RunSummary) error
	// ListRuns returns the most recent runs first.
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	// ListChanges returns the changes of a run in detection order.
	ListChanges(ctx context.Context, runID string) ([]model.Change, error)

	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 20

func errorMessages(errs []model.RunError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Message)
	}
	return out
}

func marshalErrors(errs []model.RunError) (string, error) {
	b, err := json.Marshal(errorMessages(errs))
	if err != nil {
		return "", eris.Wrap(err, "history: marshal errors")
	}
	return string(b), nil
}

func unmarshalErrors(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, eris.Wrap(err, "history: unmarshal errors")
	}
	return out, nil
}
