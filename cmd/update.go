package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/nexus-paies/fiscal-updater/internal/model"
	"github.com/nexus-paies/fiscal-updater/internal/notify"
	"github.com/nexus-paies/fiscal-updater/internal/report"
	"github.com/nexus-paies/fiscal-updater/internal/updater"
)

// errRunFailed makes the process exit nonzero when a run recorded errors.
var errRunFailed = eris.New("update: run completed with errors")

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Fetch official values, update the baseline and patch documents",
	Long: "Runs every extraction routine once, saves data.json, patches the configured documents " +
		"and writes the report. Exits nonzero when a page could not be fetched or a value could not be found.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		only, _ := cmd.Flags().GetStringSlice("only")

		hist := runHistory(ctx, cfg.History)
		if hist != nil {
			defer hist.Close() //nolint:errcheck
		}

		u := updater.New(cfg, newFetcher(cfg.Fetch), hist, notify.New(cfg.Notify))
		return runUpdate(ctx, u, updater.Options{DryRun: dryRun, Only: only, Diff: cmd.OutOrStdout()}, cmd.OutOrStdout())
	},
}

func runUpdate(ctx context.Context, u *updater.Updater, opts updater.Options, out io.Writer) error {
	sum, err := u.Run(ctx, opts)
	if err != nil {
		return err
	}
	printSummary(out, sum)
	if sum.Failed() {
		return errRunFailed
	}
	return nil
}

func printSummary(out io.Writer, sum *model.RunSummary) {
	rule := strings.Repeat("=", 50)
	_, _ = fmt.Fprintf(out, "\n%s\n%s\n", rule, report.Headline(sum))
	if sum.Rejected > 0 {
		_, _ = fmt.Fprintf(out, "%d valeur(s) rejetée(s)\n", sum.Rejected)
	}
	for _, p := range sum.Patched {
		_, _ = fmt.Fprintf(out, "document mis à jour : %s\n", p)
	}
	_, _ = fmt.Fprintln(out, rule)
}

func init() {
	updateCmd.Flags().Bool("dry-run", false, "print document diffs without writing any file")
	updateCmd.Flags().StringSlice("only", nil, "run only the named routines (cotisations, bareme_ir, plafonds_micro, smic, pmss)")
	rootCmd.AddCommand(updateCmd)
}
