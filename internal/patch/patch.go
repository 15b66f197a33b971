// Package patch rewrites literal numeric constants inside opaque text documents.
//
// A Rule's pattern locates a declaration site; its capture groups must cover
// exactly the numeric payloads. Only those spans are rewritten, everything
// else is copied byte for byte. A rule that does not match is a no-op.
package patch

import (
	"regexp"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Values is the baseline view used to render replacements.
type Values interface {
	Get(key string) (float64, bool)
}

// Rule pairs a locate pattern with the baseline keys rendered into its groups.
// Sources[i] fills capture group i+1.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Sources []string
}

// Validate checks that the pattern has one capture group per source.
func (r Rule) Validate() error {
	if r.Pattern == nil {
		return eris.Errorf("patch: rule %s has no pattern", r.Name)
	}
	if n := r.Pattern.NumSubexp(); n != len(r.Sources) {
		return eris.Errorf("patch: rule %s has %d groups for %d sources", r.Name, n, len(r.Sources))
	}
	return nil
}

// Result summarizes a patch pass.
type Result struct {
	// Applied lists rules that matched at least one site.
	Applied []string
	// Skipped lists rules that matched nothing or lacked a baseline value.
	Skipped []string
	// Sites is the number of declaration sites rewritten.
	Sites int
}

// Changed reports whether output differs from input.
func Changed(before, after string) bool { return before != after }

type span struct {
	start, end int
	text       string
}

// Patch applies rules to doc and returns the new document. Rules never fail
// open: invalid rules, rules with missing values and rules without a match
// leave the document untouched.
func Patch(doc string, values Values, rules []Rule) (string, Result) {
	var res Result
	var spans []span

	for _, r := range rules {
		if err := r.Validate(); err != nil {
			zap.L().Warn("patch: invalid rule skipped", zap.Error(err))
			res.Skipped = append(res.Skipped, r.Name)
			continue
		}
		literals, ok := render(values, r.Sources)
		if !ok {
			zap.L().Debug("patch: no baseline value for rule", zap.String("rule", r.Name))
			res.Skipped = append(res.Skipped, r.Name)
			continue
		}
		matches := r.Pattern.FindAllStringSubmatchIndex(doc, -1)
		if len(matches) == 0 {
			zap.L().Debug("patch: no declaration site", zap.String("rule", r.Name))
			res.Skipped = append(res.Skipped, r.Name)
			continue
		}
		for _, m := range matches {
			for g := range r.Sources {
				start, end := m[2*(g+1)], m[2*(g+1)+1]
				if start < 0 {
					continue
				}
				spans = append(spans, span{start: start, end: end, text: literals[g]})
			}
		}
		res.Applied = append(res.Applied, r.Name)
		res.Sites += len(matches)
	}

	return splice(doc, spans), res
}

// splice replaces non-overlapping spans. When two rules claim overlapping
// spans the first one in document order wins.
func splice(doc string, spans []span) string {
	if len(spans) == 0 {
		return doc
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	out := make([]byte, 0, len(doc))
	pos := 0
	for _, s := range spans {
		if s.start < pos {
			zap.L().Warn("patch: overlapping site ignored", zap.Int("offset", s.start))
			continue
		}
		out = append(out, doc[pos:s.start]...)
		out = append(out, s.text...)
		pos = s.end
	}
	out = append(out, doc[pos:]...)
	return string(out)
}

func render(values Values, keys []string) ([]string, bool) {
	out := make([]string, len(keys))
	for i, k := range keys {
		v, ok := values.Get(k)
		if !ok {
			return nil, false
		}
		out[i] = Literal(v)
	}
	return out, true
}

// Literal renders v as the shortest decimal literal that round-trips.
func Literal(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
