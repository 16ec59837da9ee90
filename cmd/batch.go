package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/case-extractor/internal/batch"
	"github.com/sells-group/case-extractor/internal/config"
	"github.com/sells-group/case-extractor/internal/export"
	"github.com/sells-group/case-extractor/internal/model"
	"github.com/sells-group/case-extractor/internal/monitoring"
	"github.com/sells-group/case-extractor/internal/store"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Extract every case in a CSV, XLSX or JSON descriptor",
	Long:  "Processes the cases of a batch descriptor one at a time, pacing requests per the court profile. Failed cases are recorded and skipped; --retry-failed replays the failures of an earlier run.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		input, _ := cmd.Flags().GetString("input")
		courtName, _ := cmd.Flags().GetString("court")
		retryRun, _ := cmd.Flags().GetString("retry-failed")
		limit, _ := cmd.Flags().GetInt("limit")
		formats, _ := cmd.Flags().GetStringSlice("formats")

		if input == "" && retryRun == "" {
			return eris.New("either --input or --retry-failed is required")
		}

		court, err := resolveCourt(courtName)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var (
			cases  []model.BatchCase
			source string
		)
		if retryRun != "" {
			cases, err = failedCases(ctx, st, retryRun)
			source = "retry:" + retryRun
		} else {
			cases, err = batch.ReadCases(input, court)
			source = input
		}
		if err != nil {
			return err
		}
		if limit > 0 && len(cases) > limit {
			cases = cases[:limit]
		}
		if len(cases) == 0 {
			zap.L().Info("no cases to process")
			return nil
		}

		env, err := initPipeline(ctx, court)
		if err != nil {
			return err
		}
		defer env.Close()

		return runBatch(ctx, batchJob{
			Store:   st,
			Runner:  env.Pipeline,
			Cases:   cases,
			Court:   court,
			Source:  source,
			Formats: formats,
			Alerter: monitoring.NewAlerter(cfg.Monitoring),
			Out:     os.Stdout,
		})
	},
}

func init() {
	batchCmd.Flags().String("input", "", "batch descriptor (.csv, .xlsx or .json)")
	batchCmd.Flags().String("court", "", "court profile key (default courts.default)")
	batchCmd.Flags().String("retry-failed", "", "replay the failed cases of this run ID")
	batchCmd.Flags().Int("limit", 0, "max number of cases to process (0 = all)")
	batchCmd.Flags().StringSlice("formats", nil, "export formats: csv, json, xlsx (default output.formats)")
	rootCmd.AddCommand(batchCmd)
}

// batchJob is everything runBatch needs.
type batchJob struct {
	Store   store.Store
	Runner  batch.Runner
	Cases   []model.BatchCase
	Court   *config.CourtProfile
	Source  string
	Formats []string
	Alerter *monitoring.Alerter
	Out     io.Writer
}

// runBatch records a run, drives the orchestrator, persists each outcome
// as it finishes, exports the records and prints the summary. Records are
// exported even when the batch is aborted.
func runBatch(ctx context.Context, job batchJob) error {
	// Bookkeeping must survive an interrupted batch.
	bg := context.WithoutCancel(ctx)

	run, err := job.Store.CreateRun(ctx, courtKey(job.Court), job.Source)
	if err != nil {
		return eris.Wrap(err, "create run")
	}
	log := zap.L().With(zap.String("run_id", run.ID))
	log.Info("batch run started", zap.Int("cases", len(job.Cases)), zap.String("source", job.Source))

	opts := batchOptions(job.Court)
	opts.OnOutcome = func(o model.CaseOutcome) {
		if err := job.Store.SaveOutcome(bg, run.ID, o); err != nil {
			log.Warn("failed to save case outcome", zap.Int("index", o.Index), zap.Error(err))
		}
	}

	res, runErr := batch.New(job.Runner, opts).Run(ctx, job.Cases)

	status, errMsg := model.RunStatusComplete, ""
	if runErr != nil {
		status, errMsg = model.RunStatusAborted, runErr.Error()
	}
	if err := job.Store.CompleteRun(bg, run.ID, status, res.Summary, errMsg); err != nil {
		log.Warn("failed to complete run", zap.Error(err))
	}

	paths, exportErr := exportRecords(bg, job.Formats, job.Court, res.Records)

	if job.Out != nil {
		fmt.Fprintf(job.Out, "Run ID: %s\n", run.ID)
		if err := export.WriteBatchSummary(job.Out, res.Summary, paths); err != nil {
			log.Warn("failed to print summary", zap.Error(err))
		}
	}

	if job.Alerter != nil && job.Alerter.Enabled() {
		run.Status, run.Summary, run.Error = status, res.Summary, errMsg
		job.Alerter.SendAlerts(bg, job.Alerter.Evaluate(monitoring.Summarize(*run)))
	}

	log.Info("batch run finished",
		zap.String("status", string(status)),
		zap.Int("attempted", res.Summary.Attempted),
		zap.Int("succeeded", res.Summary.Succeeded),
		zap.Int("failed", res.Summary.Failed),
	)

	if runErr != nil {
		return eris.Wrap(runErr, "batch processing")
	}
	return exportErr
}

// failedCases loads the failed cases of an earlier run for replay.
func failedCases(ctx context.Context, st store.Store, runID string) ([]model.BatchCase, error) {
	if _, err := st.GetRun(ctx, runID); err != nil {
		return nil, eris.Wrapf(err, "load run %s", runID)
	}
	outcomes, err := st.ListCases(ctx, runID, model.CaseFilter{State: model.CaseStateFailed, Limit: 100000})
	if err != nil {
		return nil, eris.Wrapf(err, "list failed cases of run %s", runID)
	}
	cases := make([]model.BatchCase, 0, len(outcomes))
	for _, o := range outcomes {
		cases = append(cases, o.Case)
	}
	return cases, nil
}
