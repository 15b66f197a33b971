// Package detect compares accepted values with the baseline and records changes.
package detect

import (
	"go.uber.org/zap"

	"github.com/nexus-paies/fiscal-updater/internal/model"
)

// Baseline is the part of the baseline store the detector mutates.
type Baseline interface {
	Get(key string) (float64, bool)
	Set(key string, v float64) error
}

// Detector records changes for the lifetime of a run.
type Detector struct {
	store   Baseline
	changes []model.Change
}

// New creates a Detector writing accepted changes into store.
func New(store Baseline) *Detector {
	return &Detector{store: store}
}

// Detect compares value with the stored value of field. When they differ
// beyond the field tolerance a Change is appended and the store is updated,
// together with every derived value. A missing stored value counts as zero.
func (d *Detector) Detect(field model.Field, value float64, derived map[string]float64, source string) (*model.Change, bool) {
	old, _ := d.store.Get(field.Key)
	if !field.Differs(old, value) {
		zap.L().Debug("detect: unchanged",
			zap.String("field", field.Key),
			zap.Float64("value", value),
		)
		return nil, false
	}

	c := model.Change{
		Category: field.Category,
		Field:    field.Label,
		Key:      field.Key,
		Old:      field.Unit.Format(old),
		New:      field.Unit.Format(value),
		OldValue: old,
		NewValue: value,
		Source:   source,
	}
	d.changes = append(d.changes, c)

	d.set(field.Key, value)
	for k, v := range derived {
		d.set(k, v)
	}

	zap.L().Info("detect: change recorded",
		zap.String("field", field.Label),
		zap.String("old", c.Old),
		zap.String("new", c.New),
		zap.String("source", source),
	)
	return &c, true
}

func (d *Detector) set(key string, v float64) {
	if err := d.store.Set(key, v); err != nil {
		zap.L().Error("detect: baseline update failed", zap.String("key", key), zap.Error(err))
	}
}

// Changes returns the changes recorded so far, in detection order.
func (d *Detector) Changes() []model.Change {
	out := make([]model.Change, len(d.changes))
	copy(out, d.changes)
	return out
}
