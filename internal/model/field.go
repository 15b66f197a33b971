package model

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Unit is the storage convention of a tracked value. It is fixed per field.
type Unit string

const (
	// UnitRate is a fraction in [0,1], displayed as a percentage.
	UnitRate Unit = "rate"
	// UnitAmount is a whole-euro amount (ceilings, bracket limits).
	UnitAmount Unit = "amount"
	// UnitWage is a decimal euro amount with cents.
	UnitWage Unit = "wage"
)

// DefaultTolerance returns the equality tolerance used by change detection.
func (u Unit) DefaultTolerance() float64 {
	switch u {
	case UnitRate, UnitWage:
		return 0.001
	default:
		return 0
	}
}

var printer = message.NewPrinter(language.English)

// Format renders v for reports: "24.6%", "188 700 €", "11,88 €".
func (u Unit) Format(v float64) string {
	switch u {
	case UnitRate:
		return fmt.Sprintf("%.1f%%", v*100)
	case UnitWage:
		s := printer.Sprintf("%.2f", v)
		s = strings.ReplaceAll(s, ",", " ")
		return strings.Replace(s, ".", ",", 1) + " €"
	default:
		s := printer.Sprintf("%d", int64(math.Round(v)))
		return strings.ReplaceAll(s, ",", " ") + " €"
	}
}

// Field describes one tracked baseline value.
type Field struct {
	// Key is the dotted baseline path, e.g. "cotisations_sociales.bnc.normal".
	Key string `json:"key" yaml:"key"`
	// Label is the human name used in change records ("BNC", "Plafond vente").
	Label string `json:"label" yaml:"label"`
	// Category names the change type and the plausibility bound.
	Category string `json:"category" yaml:"category"`
	// Bound selects the plausibility interval; defaults to Key when empty.
	Bound     string  `json:"bound,omitempty" yaml:"bound,omitempty"`
	Unit      Unit    `json:"unit" yaml:"unit"`
	Tolerance float64 `json:"tolerance" yaml:"tolerance"`
}

// BoundName returns the plausibility bound key for the field.
func (f Field) BoundName() string {
	if f.Bound != "" {
		return f.Bound
	}
	return f.Key
}

// Differs reports whether prev and next are different beyond the field tolerance.
func (f Field) Differs(prev, next float64) bool {
	return math.Abs(next-prev) > f.Tolerance
}
