package updater

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sergi/go-diff/diffmatchpatch"
	"go.uber.org/zap"

	"github.com/nexus-paies/fiscal-updater/internal/config"
	"github.com/nexus-paies/fiscal-updater/internal/fields"
	"github.com/nexus-paies/fiscal-updater/internal/patch"
)

// DocumentResult is the outcome of patching one document.
type DocumentResult struct {
	Path    string
	Missing bool
	Changed bool
	Result  patch.Result
}

// PatchDocuments rewrites the literal constants of every configured document
// from values. Missing documents are skipped with a warning. A document is
// written only when its content changed, and never in dry-run mode, where the
// diff is printed to opts.Diff instead.
func PatchDocuments(docs []config.DocumentConfig, year int, values patch.Values, opts Options) ([]DocumentResult, error) {
	out := make([]DocumentResult, 0, len(docs))
	for _, d := range docs {
		res, err := patchDocument(d, year, values, opts)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

func patchDocument(d config.DocumentConfig, year int, values patch.Values, opts Options) (DocumentResult, error) {
	res := DocumentResult{Path: d.Path}
	log := zap.L().With(zap.String("document", d.Path))

	raw, err := os.ReadFile(d.Path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("updater: document not found, skipped")
			res.Missing = true
			return res, nil
		}
		return res, eris.Wrapf(err, "updater: read document %s", d.Path)
	}

	rules, unknown := fields.Rules(year, d.Rules)
	if len(unknown) > 0 {
		log.Warn("updater: unknown rule sets ignored", zap.Strings("sets", unknown))
	}

	before := string(raw)
	after, pr := patch.Patch(before, values, rules)
	res.Result = pr
	res.Changed = patch.Changed(before, after)
	log.Info("updater: document patched",
		zap.Int("sites", pr.Sites),
		zap.Int("skipped", len(pr.Skipped)),
		zap.Bool("changed", res.Changed),
	)
	if !res.Changed {
		return res, nil
	}

	if opts.DryRun {
		if opts.Diff != nil {
			if _, err := io.WriteString(opts.Diff, LineDiff(d.Path, before, after)); err != nil {
				return res, eris.Wrap(err, "updater: write diff")
			}
		}
		return res, nil
	}

	info, err := os.Stat(d.Path)
	if err != nil {
		return res, eris.Wrapf(err, "updater: stat document %s", d.Path)
	}
	if err := os.WriteFile(d.Path, []byte(after), info.Mode().Perm()); err != nil {
		return res, eris.Wrapf(err, "updater: write document %s", d.Path)
	}
	return res, nil
}

// LineDiff renders the lines that differ between before and after, prefixed
// with - and +.
func LineDiff(name, before, after string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s\n+++ %s\n", name, name)
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		default:
			continue
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			sb.WriteString(prefix)
			sb.WriteString(strings.TrimSuffix(line, "\n"))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
