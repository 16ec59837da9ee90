package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/case-extractor/internal/config"
)

var (
	cfg    *config.Config
	courts config.Courts
)

var rootCmd = &cobra.Command{
	Use:   "case-extractor",
	Short: "Screenshot court case pages and extract case data with a vision model",
	Long:  "Loads court case detail pages in a headless browser, captures full-page screenshots, extracts structured case fields with a vision model, and exports the records as CSV, JSON or XLSX.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		ct, err := config.LoadCourts(cfg.Courts.Path)
		if err != nil {
			return fmt.Errorf("load courts: %w", err)
		}
		courts = ct

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// resolveCourt returns the named court profile, falling back to
// courts.default. It returns nil when neither names a court.
func resolveCourt(name string) (*config.CourtProfile, error) {
	if name == "" {
		name = cfg.Courts.Default
	}
	if name == "" {
		return nil, nil
	}
	p, err := courts.Get(name)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
