package updater

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nexus-paies/fiscal-updater/internal/detect"
	"github.com/nexus-paies/fiscal-updater/internal/fetcher"
	"github.com/nexus-paies/fiscal-updater/internal/fields"
	"github.com/nexus-paies/fiscal-updater/internal/model"
)

type page struct {
	text string
	err  error
}

// runState carries what a run accumulates across routines. Pages are fetched
// at most once per run and a failed fetch is reported once.
type runState struct {
	fetcher  fetcher.PageFetcher
	pages    map[string]page
	errors   []model.RunError
	rejected int
}

func newRunState(f fetcher.PageFetcher) *runState {
	return &runState{fetcher: f, pages: make(map[string]page)}
}

func (s *runState) page(ctx context.Context, url string) (string, bool) {
	if p, ok := s.pages[url]; ok {
		return p.text, p.err == nil
	}
	text, err := s.fetcher.Fetch(ctx, url)
	s.pages[url] = page{text: text, err: err}
	if err != nil {
		zap.L().Error("updater: fetch failed", zap.String("url", url), zap.Error(err))
		s.errors = append(s.errors, model.RunError{
			Message: fmt.Sprintf("Erreur HTTP %s: %v", url, err),
			Source:  url,
		})
		return "", false
	}
	return text, true
}

// runRoutine updates every field of r. A panic inside the routine is turned
// into a RunError so later routines still run.
func (u *Updater) runRoutine(ctx context.Context, r fields.Routine, det *detect.Detector, st *runState) (ok bool) {
	log := zap.L().With(zap.String("routine", r.Name))
	defer func() {
		if p := recover(); p != nil {
			log.Error("updater: routine panicked", zap.Any("panic", p))
			st.errors = append(st.errors, model.RunError{Message: fmt.Sprintf("Erreur %s: %v", r.Name, p)})
			ok = false
		}
	}()

	log.Info("updater: checking routine", zap.Int("fields", len(r.Specs)))
	ok = true
	for _, spec := range r.Specs {
		if !u.updateField(ctx, r.URLs, spec, det, st) {
			ok = false
		}
	}
	return ok
}

// updateField walks the source URLs until one fetches and yields a candidate.
// It returns false when the field is exhausted.
func (u *Updater) updateField(ctx context.Context, urls []string, spec fields.Spec, det *detect.Detector, st *runState) bool {
	for _, url := range urls {
		text, ok := st.page(ctx, url)
		if !ok {
			continue
		}
		cand, found := spec.Rule.Extract(text)
		if !found {
			zap.L().Debug("updater: no candidate on page",
				zap.String("field", spec.Field.Key),
				zap.String("url", url),
			)
			continue
		}
		if !u.gate.Check(spec.Field.BoundName(), cand.Value) {
			st.rejected++
			return true
		}
		det.Detect(spec.Field, cand.Value, spec.Rule.Derive(cand.Value), url)
		return true
	}
	st.errors = append(st.errors, exhausted(spec.Field))
	return false
}
