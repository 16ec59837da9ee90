package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/case-extractor/internal/batch"
	"github.com/sells-group/case-extractor/internal/model"
	"github.com/sells-group/case-extractor/internal/render"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Collect case links from a listing page into a batch descriptor",
	Long:  "Loads a court listing page, collects the case detail links matching a selector, and writes them as a case_number,url CSV for the batch command.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		listingURL, _ := cmd.Flags().GetString("url")
		selector, _ := cmd.Flags().GetString("selector")
		courtName, _ := cmd.Flags().GetString("court")
		output, _ := cmd.Flags().GetString("output")

		court, err := resolveCourt(courtName)
		if err != nil {
			return err
		}
		if court != nil {
			if listingURL == "" {
				listingURL = court.BaseURL
			}
			if selector == "" {
				selector = court.LinkSelector
			}
		}
		if listingURL == "" || selector == "" {
			return eris.New("discover needs a listing --url and a link --selector (or a court profile that sets them)")
		}

		browser, err := initBrowser(ctx)
		if err != nil {
			return err
		}
		defer browser.Close() //nolint:errcheck

		rc := render.NewClient(browser, renderDefaults(cfg.Browser))
		links, err := rc.DiscoverLinks(ctx, listingURL, selector, captureOptions(court))
		if err != nil {
			return eris.Wrap(err, "discover links")
		}

		cases := linksToCases(links)
		f, err := os.Create(output)
		if err != nil {
			return eris.Wrapf(err, "create %s", output)
		}
		defer f.Close() //nolint:errcheck
		if err := batch.WriteDescriptor(f, cases); err != nil {
			return err
		}

		zap.L().Info("discovered case links", zap.Int("links", len(cases)), zap.String("output", output))
		fmt.Fprintf(os.Stdout, "Wrote %d case(s) to %s\n", len(cases), output)
		return nil
	},
}

func init() {
	discoverCmd.Flags().String("url", "", "listing page URL (default the court's base_url)")
	discoverCmd.Flags().String("selector", "", "CSS selector for case links (default the court's link_selector)")
	discoverCmd.Flags().String("court", "", "court profile key (default courts.default)")
	discoverCmd.Flags().String("output", "cases.csv", "descriptor CSV to write")
	rootCmd.AddCommand(discoverCmd)
}

// linksToCases uses each link's text as the case number, falling back to
// the URL when the anchor has no text.
func linksToCases(links []render.Link) []model.BatchCase {
	cases := make([]model.BatchCase, 0, len(links))
	for _, l := range links {
		num := l.Text
		if num == "" {
			num = l.URL
		}
		cases = append(cases, model.BatchCase{CaseNumber: num, URL: l.URL})
	}
	return cases
}
