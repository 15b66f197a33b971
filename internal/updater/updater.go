// Package updater runs the fetch, extract, gate and detect pipeline over the
// field catalogue, then persists the baseline and patches the calculator
// documents.
package updater

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/nexus-paies/fiscal-updater/internal/baseline"
	"github.com/nexus-paies/fiscal-updater/internal/config"
	"github.com/nexus-paies/fiscal-updater/internal/detect"
	"github.com/nexus-paies/fiscal-updater/internal/fetcher"
	"github.com/nexus-paies/fiscal-updater/internal/fields"
	"github.com/nexus-paies/fiscal-updater/internal/gate"
	"github.com/nexus-paies/fiscal-updater/internal/history"
	"github.com/nexus-paies/fiscal-updater/internal/model"
	"github.com/nexus-paies/fiscal-updater/internal/notify"
	"github.com/nexus-paies/fiscal-updater/internal/report"
)

// Options tunes a single run.
type Options struct {
	// DryRun leaves every file untouched and prints document diffs to Diff.
	DryRun bool
	// Only restricts the run to the named routines. Empty runs all of them.
	Only []string
	// Diff receives document diffs in dry-run mode.
	Diff io.Writer
}

// Updater orchestrates one update run.
type Updater struct {
	cfg      *config.Config
	fetcher  fetcher.PageFetcher
	gate     *gate.Gate
	routines []fields.Routine
	history  history.Store
	notifier *notify.Notifier
	now      func() time.Time
}

// New creates an Updater. hist and n may be nil.
func New(cfg *config.Config, f fetcher.PageFetcher, hist history.Store, n *notify.Notifier) *Updater {
	return &Updater{
		cfg:      cfg,
		fetcher:  f,
		gate:     gate.New(cfg.Bounds),
		routines: fields.Catalogue(cfg.Fiscal.Year, cfg.Sources),
		history:  hist,
		notifier: n,
		now:      time.Now,
	}
}

// Routines returns the names of the catalogue routines in run order.
func (u *Updater) Routines() []string {
	names := make([]string, len(u.routines))
	for i, r := range u.routines {
		names[i] = r.Name
	}
	return names
}

// Run executes every selected routine sequentially, saves the baseline,
// patches the configured documents and writes the reports. RunErrors are
// reported through the summary; the returned error is reserved for
// infrastructure failures.
func (u *Updater) Run(ctx context.Context, opts Options) (*model.RunSummary, error) {
	selected, err := u.selectRoutines(opts.Only)
	if err != nil {
		return nil, err
	}

	sum := &model.RunSummary{ID: uuid.New().String(), StartedAt: u.now(), DryRun: opts.DryRun}
	log := zap.L().With(zap.String("run_id", sum.ID), zap.Bool("dry_run", opts.DryRun))
	log.Info("updater: starting run", zap.Int("routines", len(selected)))

	store, err := baseline.Load(u.cfg.Paths.Baseline)
	if err != nil {
		return nil, eris.Wrap(err, "updater: load baseline")
	}

	det := detect.New(store)
	st := newRunState(u.fetcher)
	for _, r := range selected {
		if ok := u.runRoutine(ctx, r, det, st); !ok {
			log.Warn("updater: routine incomplete", zap.String("routine", r.Name))
		}
	}
	sum.Changes = det.Changes()
	sum.Errors = st.errors
	sum.Rejected = st.rejected

	if !opts.DryRun {
		if err := store.Save(u.now()); err != nil {
			return nil, eris.Wrap(err, "updater: save baseline")
		}
		log.Info("updater: baseline saved", zap.String("path", store.Path()))
	}

	docs, err := PatchDocuments(u.cfg.Documents, u.cfg.Fiscal.Year, store, opts)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if d.Changed {
			sum.Patched = append(sum.Patched, d.Path)
		}
	}

	sum.FinishedAt = u.now()
	if err := u.writeReports(sum); err != nil {
		return nil, err
	}
	u.record(ctx, sum)
	u.notify(ctx, sum)

	log.Info("updater: run finished",
		zap.Int("changes", len(sum.Changes)),
		zap.Int("errors", len(sum.Errors)),
		zap.Int("rejected", sum.Rejected),
		zap.Duration("elapsed", sum.FinishedAt.Sub(sum.StartedAt)),
	)
	return sum, nil
}

func (u *Updater) selectRoutines(only []string) ([]fields.Routine, error) {
	if len(only) == 0 {
		return u.routines, nil
	}
	want := make(map[string]bool, len(only))
	for _, n := range only {
		want[n] = true
	}
	var out []fields.Routine
	for _, r := range u.routines {
		if want[r.Name] {
			out = append(out, r)
			delete(want, r.Name)
		}
	}
	for n := range want {
		return nil, eris.Errorf("updater: unknown routine %q", n)
	}
	return out, nil
}

func (u *Updater) writeReports(sum *model.RunSummary) error {
	if sum.DryRun {
		return nil
	}
	if p := u.cfg.Paths.Report; p != "" {
		if err := report.WriteMarkdown(p, sum, sum.FinishedAt); err != nil {
			return eris.Wrap(err, "updater: write report")
		}
	}
	if p := u.cfg.Paths.ReportXLSX; p != "" {
		if err := report.WriteXLSX(p, sum); err != nil {
			return eris.Wrap(err, "updater: write workbook")
		}
	}
	return nil
}

func (u *Updater) record(ctx context.Context, sum *model.RunSummary) {
	if u.history == nil {
		return
	}
	if err := u.history.RecordRun(ctx, sum); err != nil {
		zap.L().Error("updater: failed to record run history", zap.Error(err))
		return
	}
	zap.L().Debug("updater: run recorded", zap.String("run_id", sum.ID))
}

func (u *Updater) notify(ctx context.Context, sum *model.RunSummary) {
	if u.notifier == nil {
		return
	}
	if _, err := u.notifier.Notify(ctx, sum); err != nil {
		zap.L().Error("updater: failed to send notification", zap.Error(err))
	}
}

// exhausted formats the RunError of a field that no source could provide.
func exhausted(f model.Field) model.RunError {
	return model.RunError{Message: fmt.Sprintf("Impossible de récupérer %s", f.Label)}
}
