package extract

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Parser converts a raw matched token into the stored numeric form.
type Parser func(raw string) (float64, error)

var numberCleaner = strings.NewReplacer(
	" ", "",
	"\u00a0", "", // no-break space
	"\u202f", "", // narrow no-break space
	"\u2009", "", // thin space
	"\t", "",
	"\n", "",
)

// CleanNumber strips the digit-group separators French pages use.
func CleanNumber(s string) string {
	return numberCleaner.Replace(strings.TrimSpace(s))
}

// ParseDecimal parses "11,88" or "11.88".
func ParseDecimal(raw string) (float64, error) {
	s := strings.Replace(CleanNumber(raw), ",", ".", 1)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "extract: parse decimal %q", raw)
	}
	return v, nil
}

// ParsePercent parses "24,6" (a percentage) into the fraction 0.246.
func ParsePercent(raw string) (float64, error) {
	v, err := ParseDecimal(raw)
	if err != nil {
		return 0, err
	}
	return Round(v / 100), nil
}

// ratePrecision: stored fractions carry at most six decimals.
const ratePrecision = 1e6

// Round snaps v to ratePrecision.
func Round(v float64) float64 {
	return math.Round(v*ratePrecision) / ratePrecision
}

// ParseAmount parses a whole-euro amount such as "188 700".
func ParseAmount(raw string) (float64, error) {
	s := CleanNumber(raw)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "extract: parse amount %q", raw)
	}
	return float64(v), nil
}
