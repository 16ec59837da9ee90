package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/case-extractor/internal/inference"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the inference server, browser and store are reachable",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
		defer cancel()

		results := runChecks(ctx, []namedCheck{
			{Name: "inference", Fn: checkInference},
			{Name: "browser", Fn: checkBrowser},
			{Name: "store", Fn: checkStore},
		})
		formatChecks(os.Stdout, results)

		for _, r := range results {
			if r.Err != nil {
				return eris.New("one or more checks failed")
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

// namedCheck returns a short detail string on success.
type namedCheck struct {
	Name string
	Fn   func(ctx context.Context) (string, error)
}

type checkResult struct {
	Name   string
	Detail string
	Err    error
}

// runChecks runs every check concurrently. A failing check does not stop
// the others.
func runChecks(ctx context.Context, checks []namedCheck) []checkResult {
	results := make([]checkResult, len(checks))
	var g errgroup.Group
	for i, c := range checks {
		g.Go(func() error {
			detail, err := c.Fn(ctx)
			results[i] = checkResult{Name: c.Name, Detail: detail, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func formatChecks(out io.Writer, results []checkResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, r := range results {
		status, detail := "ok", r.Detail
		if r.Err != nil {
			status, detail = "FAIL", r.Err.Error()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, status, detail)
	}
	_ = w.Flush()
}

func checkInference(ctx context.Context) (string, error) {
	switch cfg.Inference.Provider {
	case inference.ProviderOpenAI:
		o := inference.NewOpenAI(initLMStudio(), inference.Settings{Model: cfg.Inference.Model})
		id, err := o.LoadedModel(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s (model %s)", cfg.Inference.BaseURL, id), nil
	case inference.ProviderAnthropic:
		if cfg.Anthropic.Key == "" {
			return "", eris.New("anthropic.key is not set")
		}
		return "anthropic key configured (model " + cfg.Anthropic.Model + ")", nil
	default:
		return "", eris.Errorf("unsupported inference provider: %s", cfg.Inference.Provider)
	}
}

func checkBrowser(ctx context.Context) (string, error) {
	b, err := initBrowser(ctx)
	if err != nil {
		return "", err
	}
	if err := b.Close(); err != nil {
		return "", eris.Wrap(err, "close browser")
	}
	return "chrome launched", nil
}

func checkStore(ctx context.Context) (string, error) {
	st, err := initStore(ctx)
	if err != nil {
		return "", err
	}
	defer st.Close() //nolint:errcheck
	if err := st.Ping(ctx); err != nil {
		return "", err
	}
	return cfg.Store.Driver, nil
}
