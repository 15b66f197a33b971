package main

import (
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/nexus-paies/fiscal-updater/internal/baseline"
	"github.com/nexus-paies/fiscal-updater/internal/config"
	"github.com/nexus-paies/fiscal-updater/internal/updater"
)

var patchCmd = &cobra.Command{
	Use:   "patch",
	Short: "Patch the configured documents from the current baseline",
	Long:  "Rewrites the literal constants of every configured document from data.json without fetching anything.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		return runPatch(cfg, dryRun, cmd.OutOrStdout())
	},
}

func runPatch(c *config.Config, dryRun bool, out io.Writer) error {
	store, err := baseline.Load(c.Paths.Baseline)
	if err != nil {
		return eris.Wrap(err, "patch: load baseline")
	}

	results, err := updater.PatchDocuments(c.Documents, c.Fiscal.Year, store, updater.Options{DryRun: dryRun, Diff: out})
	if err != nil {
		return err
	}

	for _, r := range results {
		switch {
		case r.Missing:
			_, _ = fmt.Fprintf(out, "%s: introuvable\n", r.Path)
		case r.Changed && dryRun:
			_, _ = fmt.Fprintf(out, "%s: %d site(s) à modifier\n", r.Path, r.Result.Sites)
		case r.Changed:
			_, _ = fmt.Fprintf(out, "%s: mis à jour (%d site(s))\n", r.Path, r.Result.Sites)
		default:
			_, _ = fmt.Fprintf(out, "%s: à jour\n", r.Path)
		}
	}
	return nil
}

func init() {
	patchCmd.Flags().Bool("dry-run", false, "print document diffs without writing any file")
	rootCmd.AddCommand(patchCmd)
}
