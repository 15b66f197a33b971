// Package report renders run summaries as a markdown report and an optional
// xlsx workbook.
package report

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/nexus-paies/fiscal-updater/internal/model"
)

const timestampLayout = "02/01/2006 15:04"

// Render returns the markdown report for a run.
func Render(sum *model.RunSummary, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Rapport - %s\n\n", now.Format(timestampLayout))
	b.WriteString("## Résumé\n")
	fmt.Fprintf(&b, "- **Changements** : %d\n", len(sum.Changes))
	fmt.Fprintf(&b, "- **Erreurs** : %d\n", len(sum.Errors))
	if sum.Rejected > 0 {
		fmt.Fprintf(&b, "- **Valeurs rejetées** : %d\n", sum.Rejected)
	}
	if sum.DryRun {
		b.WriteString("- **Simulation** : aucun fichier modifié\n")
	}
	b.WriteString("\n")

	if len(sum.Changes) > 0 {
		b.WriteString("## Modifications\n\n")
		b.WriteString("| Type | Champ | Ancien | Nouveau |\n")
		b.WriteString("|------|-------|--------|--------|\n")
		for _, c := range sum.Changes {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", cell(c.Category), cell(c.Field), cell(c.Old), cell(c.New))
		}
	} else {
		b.WriteString("## Aucune modification\nLes données sont à jour.\n")
	}

	if len(sum.Errors) > 0 {
		b.WriteString("\n## Erreurs\n")
		for _, e := range sum.Errors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}
	return b.String()
}

// cell keeps a value from breaking the markdown table.
func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// WriteMarkdown renders the report and writes it to path, replacing any
// previous report.
func WriteMarkdown(path string, sum *model.RunSummary, now time.Time) error {
	if err := os.WriteFile(path, []byte(Render(sum, now)), 0o644); err != nil {
		return eris.Wrapf(err, "report: write %s", path)
	}
	return nil
}

// Headline is the one-line console summary printed after a run.
func Headline(sum *model.RunSummary) string {
	var line string
	if len(sum.Changes) > 0 {
		line = fmt.Sprintf("✅ %d modification(s)", len(sum.Changes))
	} else {
		line = "✅ Données à jour"
	}
	if len(sum.Errors) > 0 {
		line += fmt.Sprintf(", ❌ %d erreur(s)", len(sum.Errors))
	}
	return line
}
