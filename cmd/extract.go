package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/case-extractor/internal/config"
	"github.com/sells-group/case-extractor/internal/export"
	"github.com/sells-group/case-extractor/internal/model"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract one court case",
	Long:  "Loads a single case page, screenshots it, extracts the case fields and prints them. Records are exported unless --no-export is set.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		caseNumber, _ := cmd.Flags().GetString("case-number")
		pageURL, _ := cmd.Flags().GetString("url")
		courtName, _ := cmd.Flags().GetString("court")
		waitSelector, _ := cmd.Flags().GetString("wait-selector")
		noExport, _ := cmd.Flags().GetBool("no-export")

		court, err := resolveCourt(courtName)
		if err != nil {
			return err
		}
		pageURL, err = caseURL(pageURL, caseNumber, court)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx, court)
		if err != nil {
			return err
		}
		defer env.Close()

		ext, err := env.Pipeline.Run(ctx, pageURL, caseNumber, waitSelector)
		if err != nil {
			return eris.Wrap(err, "extract")
		}
		if err := export.WriteSummary(os.Stdout, ext); err != nil {
			return err
		}
		if noExport {
			return nil
		}
		formats, _ := cmd.Flags().GetStringSlice("formats")
		_, err = exportRecords(ctx, formats, court, []*model.CaseRecord{ext.Record})
		return err
	},
}

func init() {
	extractCmd.Flags().String("case-number", "", "case number to extract (required)")
	extractCmd.Flags().String("url", "", "case detail page URL (default built from the court's case_url_template)")
	extractCmd.Flags().String("court", "", "court profile key (default courts.default)")
	extractCmd.Flags().String("wait-selector", "", "CSS selector to wait for before the screenshot")
	extractCmd.Flags().StringSlice("formats", nil, "export formats: csv, json, xlsx (default output.formats)")
	extractCmd.Flags().Bool("no-export", false, "print the summary only")
	_ = extractCmd.MarkFlagRequired("case-number")
	rootCmd.AddCommand(extractCmd)
}

// caseURL returns pageURL, or builds it from the court template when empty.
func caseURL(pageURL, caseNumber string, court *config.CourtProfile) (string, error) {
	if strings.TrimSpace(caseNumber) == "" {
		return "", eris.New("case number is required")
	}
	if pageURL != "" {
		return pageURL, nil
	}
	if court == nil {
		return "", eris.New("either --url or a court profile with a case_url_template is required")
	}
	return court.CaseURL(caseNumber)
}

// exportRecords writes records in the named formats, falling back to
// output.formats.
func exportRecords(ctx context.Context, names []string, court *config.CourtProfile, records []*model.CaseRecord) ([]string, error) {
	if len(names) == 0 {
		names = cfg.Output.Formats
	}
	formats, err := export.ParseFormats(names)
	if err != nil {
		return nil, err
	}

	paths, err := export.WriteAll(ctx, outputDir(court), export.BaseName(time.Now(), court), records, formats)
	if err != nil {
		return nil, eris.Wrap(err, "export records")
	}
	for _, p := range paths {
		zap.L().Info("records saved", zap.String("path", p))
	}
	return paths, nil
}
