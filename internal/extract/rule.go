// Package extract locates numeric facts inside flattened page text.
//
// Extraction is heuristic: a Rule is an ordered list of patterns and the first
// pattern that yields a parseable token wins. Implausible matches are left for
// the plausibility gate to reject.
package extract

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// Derivation computes a dependent baseline value from an accepted primary value.
type Derivation struct {
	Key     string
	Compute func(primary float64) float64
}

// Rule is a static extraction definition for one field.
type Rule struct {
	Name     string
	Patterns []*regexp.Regexp
	Parse    Parser
	// Group is the capture group holding the number. Zero means group 1.
	Group int
	// Occurrence selects the n-th match of a pattern (0 = first).
	Occurrence int
	Derived    []Derivation
}

// Candidate is an extracted, not yet validated value.
type Candidate struct {
	Value   float64
	Raw     string
	Pattern int
}

// Extract runs the rule over text. The text is flattened first.
func (r Rule) Extract(text string) (Candidate, bool) {
	flat := Flatten(text)
	group := r.Group
	if group == 0 {
		group = 1
	}
	for i, re := range r.Patterns {
		matches := re.FindAllStringSubmatch(flat, r.Occurrence+1)
		if len(matches) <= r.Occurrence {
			continue
		}
		m := matches[r.Occurrence]
		if group >= len(m) {
			continue
		}
		v, err := r.Parse(m[group])
		if err != nil {
			zap.L().Debug("extract: unparseable match",
				zap.String("rule", r.Name),
				zap.String("raw", m[group]),
				zap.Error(err),
			)
			continue
		}
		return Candidate{Value: v, Raw: m[group], Pattern: i}, true
	}
	return Candidate{}, false
}

// Derive returns the derived values for an accepted primary value.
func (r Rule) Derive(primary float64) map[string]float64 {
	if len(r.Derived) == 0 {
		return nil
	}
	out := make(map[string]float64, len(r.Derived))
	for _, d := range r.Derived {
		out[d.Key] = d.Compute(primary)
	}
	return out
}

// Flatten collapses every whitespace run (including no-break and thin
// spaces) into a single ASCII space.
func Flatten(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	space := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// MustPatterns compiles patterns as case-insensitive and dot-all.
func MustPatterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?is)` + e)
	}
	return out
}

// Half is the ACRE reduction: half of the normal rate.
func Half(v float64) float64 { return Round(v / 2) }

// Times returns a derivation multiplying by k and rounding to cents.
func Times(k float64) func(float64) float64 {
	return func(v float64) float64 {
		return math.Round(v*k*100) / 100
	}
}
