package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/nexus-paies/fiscal-updater/internal/history"
	"github.com/nexus-paies/fiscal-updater/internal/model"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect past update runs",
}

// -- history list --

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent update runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withHistory(cmd.Context(), func(st history.Store) error {
			runs, err := st.ListRuns(cmd.Context(), limit)
			if err != nil {
				return eris.Wrap(err, "history list")
			}
			if len(runs) == 0 {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "No runs found.")
				return nil
			}
			formatRunsList(cmd.OutOrStdout(), runs)
			return nil
		})
	},
}

// -- history show --

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the changes recorded by a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(cmd.Context(), func(st history.Store) error {
			changes, err := st.ListChanges(cmd.Context(), args[0])
			if err != nil {
				return eris.Wrap(err, "history show")
			}
			if len(changes) == 0 {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "No changes recorded.")
				return nil
			}
			formatChanges(cmd.OutOrStdout(), changes)
			return nil
		})
	},
}

func withHistory(ctx context.Context, fn func(history.Store) error) error {
	st, err := initHistory(ctx, cfg.History)
	if err != nil {
		return err
	}
	if st == nil {
		return eris.New("history is disabled (history.driver is none)")
	}
	defer st.Close() //nolint:errcheck
	return fn(st)
}

func init() {
	historyListCmd.Flags().Int("limit", 20, "max number of runs to display")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []history.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTARTED\tDURATION\tCHANGES\tERRORS\tREJECTED\tDRY_RUN")
	_, _ = fmt.Fprintln(w, "--\t-------\t--------\t-------\t------\t--------\t-------")

	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%t\n",
			truncateID(r.ID),
			r.StartedAt.Format("2006-01-02 15:04"),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second),
			r.ChangeCount,
			len(r.Errors),
			r.Rejected,
			r.DryRun,
		)
	}
	_ = w.Flush()
}

// formatChanges writes the change records of a run to w.
func formatChanges(out io.Writer, changes []model.Change) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TYPE\tCHAMP\tANCIEN\tNOUVEAU\tSOURCE")
	for _, c := range changes {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.Category, c.Field, c.Old, c.New, c.Source)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
