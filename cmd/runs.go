package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/case-extractor/internal/model"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect batch run history",
	Long:  "Commands for listing runs, viewing a run, and listing its case outcomes.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List batch runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		court, _ := cmd.Flags().GetString("court")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, model.RunFilter{
			Status: model.RunStatus(status),
			Court:  court,
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs cases --

var runsCasesCmd = &cobra.Command{
	Use:   "cases <run-id>",
	Short: "List the case outcomes of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		state, _ := cmd.Flags().GetString("state")
		limit, _ := cmd.Flags().GetInt("limit")

		outcomes, err := st.ListCases(ctx, args[0], model.CaseFilter{
			State: model.CaseState(state),
			Limit: limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs cases")
		}
		if len(outcomes) == 0 {
			fmt.Fprintln(os.Stderr, "No cases found.")
			return nil
		}

		formatCaseOutcomes(os.Stdout, outcomes)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (running, complete, aborted)")
	runsListCmd.Flags().String("court", "", "filter by court profile key")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsCasesCmd.Flags().String("state", "", "filter by case state (succeeded, failed)")
	runsCasesCmd.Flags().Int("limit", 500, "max number of cases to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsCasesCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCOURT\tSTATUS\tOK/TOTAL\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t-----\t------\t--------\t-------\t--------")

	for _, r := range runs {
		dur := r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String()

		court := r.Court
		if court == "" {
			court = "-"
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			truncateID(r.ID),
			court,
			r.Status,
			r.Summary.Succeeded, r.Summary.Attempted,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// formatCaseOutcomes writes one line per case outcome.
func formatCaseOutcomes(out io.Writer, outcomes []model.CaseOutcome) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tCASE\tSTATE\tSTAGE\tATTEMPTS\tDETAIL")
	for _, o := range outcomes {
		detail := o.Error
		if o.State == model.CaseStateSucceeded {
			detail = o.ScreenshotPath
			if o.Degraded {
				detail += " (degraded)"
			}
		}
		if len(detail) > 80 {
			detail = detail[:77] + "..."
		}
		stage := string(o.Stage)
		if stage == "" {
			stage = "-"
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n",
			o.Index, o.Case.CaseNumber, o.State, stage, o.Attempts, detail)
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
