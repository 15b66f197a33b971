// Package gate rejects extracted values that fall outside a plausibility bound.
package gate

import (
	"go.uber.org/zap"
)

// Bound is a closed plausibility interval.
type Bound struct {
	Min float64 `yaml:"min" mapstructure:"min"`
	Max float64 `yaml:"max" mapstructure:"max"`
}

// Contains reports whether v lies in [Min, Max].
func (b Bound) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// Accept is the plausibility check for a single candidate.
func Accept(v float64, b Bound) bool {
	return b.Contains(v)
}

// Gate checks candidates against named bounds.
type Gate struct {
	bounds map[string]Bound
}

// New creates a Gate over a copy of bounds.
func New(bounds map[string]Bound) *Gate {
	cp := make(map[string]Bound, len(bounds))
	for k, v := range bounds {
		cp[k] = v
	}
	return &Gate{bounds: cp}
}

// Bound returns the bound registered under name.
func (g *Gate) Bound(name string) (Bound, bool) {
	b, ok := g.bounds[name]
	return b, ok
}

// Check accepts v for the named bound. Rejections are logged as warnings.
// A field without a configured bound is rejected so a missing entry cannot
// let arbitrary matches through.
func (g *Gate) Check(name string, v float64) bool {
	b, ok := g.bounds[name]
	if !ok {
		zap.L().Warn("gate: no plausibility bound configured, value ignored",
			zap.String("bound", name),
			zap.Float64("value", v),
		)
		return false
	}
	if !Accept(v, b) {
		zap.L().Warn("gate: implausible value ignored",
			zap.String("bound", name),
			zap.Float64("value", v),
			zap.Float64("min", b.Min),
			zap.Float64("max", b.Max),
		)
		return false
	}
	return true
}
