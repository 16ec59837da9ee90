package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/case-extractor/internal/config"
	"github.com/sells-group/case-extractor/internal/export"
	"github.com/sells-group/case-extractor/internal/model"
	"github.com/sells-group/case-extractor/internal/render"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Find a case through the court's search form, then extract it",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		caseNumber, _ := cmd.Flags().GetString("case-number")
		courtName, _ := cmd.Flags().GetString("court")
		noExtract, _ := cmd.Flags().GetBool("no-extract")
		formats, _ := cmd.Flags().GetStringSlice("formats")

		court, err := resolveCourt(courtName)
		if err != nil {
			return err
		}
		req, err := searchRequest(court, caseNumber)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx, court)
		if err != nil {
			return err
		}
		defer env.Close()

		detailURL, err := env.Render.Search(ctx, req)
		if err != nil {
			return eris.Wrapf(err, "search case %s", caseNumber)
		}
		fmt.Fprintf(os.Stdout, "Case URL: %s\n", detailURL)
		if noExtract {
			return nil
		}

		ext, err := env.Pipeline.Run(ctx, detailURL, caseNumber, "")
		if err != nil {
			return eris.Wrap(err, "extract")
		}
		if err := export.WriteSummary(os.Stdout, ext); err != nil {
			return err
		}
		_, err = exportRecords(ctx, formats, court, []*model.CaseRecord{ext.Record})
		return err
	},
}

func init() {
	searchCmd.Flags().String("case-number", "", "case number to search for (required)")
	searchCmd.Flags().String("court", "", "court profile key with search selectors (default courts.default)")
	searchCmd.Flags().Bool("no-extract", false, "only print the resolved case URL")
	searchCmd.Flags().StringSlice("formats", nil, "export formats: csv, json, xlsx (default output.formats)")
	_ = searchCmd.MarkFlagRequired("case-number")
	rootCmd.AddCommand(searchCmd)
}

// searchRequest builds the form-driving request from a court profile.
func searchRequest(court *config.CourtProfile, caseNumber string) (render.SearchRequest, error) {
	if court == nil {
		return render.SearchRequest{}, eris.New("search needs a court profile (--court or courts.default)")
	}
	if !court.HasSearch() {
		return render.SearchRequest{}, eris.Errorf("court %q has no search_url and search_selectors", court.Key)
	}
	return render.SearchRequest{
		SearchURL:      court.SearchURL,
		CaseNumber:     caseNumber,
		InputSelector:  court.SearchSelectors.CaseNumberInput,
		ButtonSelector: court.SearchSelectors.SearchButton,
		ResultSelector: court.SearchSelectors.ResultLink,
	}, nil
}
