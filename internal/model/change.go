package model

import "time"

// Change is a detected baseline update. It is never mutated after creation.
type Change struct {
	Category string  `json:"type"`
	Field    string  `json:"champ"`
	Key      string  `json:"key"`
	Old      string  `json:"ancien"`
	New      string  `json:"nouveau"`
	OldValue float64 `json:"old_value"`
	NewValue float64 `json:"new_value"`
	Source   string  `json:"source"`
}

// RunError is an observational record of a failed fetch or an exhausted field.
type RunError struct {
	Message string `json:"message"`
	Source  string `json:"source,omitempty"`
}

func (e RunError) String() string {
	return e.Message
}

// RunSummary is the outcome of a single update run.
type RunSummary struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Changes    []Change   `json:"changes"`
	Errors     []RunError `json:"errors"`
	Rejected   int        `json:"rejected"`
	Patched    []string   `json:"patched,omitempty"`
	DryRun     bool       `json:"dry_run"`
}

// Failed reports whether the run recorded at least one error.
func (s *RunSummary) Failed() bool {
	return len(s.Errors) > 0
}
