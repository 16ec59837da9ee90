package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/case-extractor/internal/config"
)

var courtsCmd = &cobra.Command{
	Use:   "courts",
	Short: "List the configured court profiles",
	RunE: func(_ *cobra.Command, _ []string) error {
		formatCourtsList(os.Stdout, courts, cfg.Courts.Default)
		return nil
	},
}

var courtsShowCmd = &cobra.Command{
	Use:   "show <court>",
	Short: "Print one court profile as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		p, err := courts.Get(args[0])
		if err != nil {
			return err
		}
		return writeCourtYAML(os.Stdout, p)
	},
}

func init() {
	courtsCmd.AddCommand(courtsShowCmd)
	rootCmd.AddCommand(courtsCmd)
}

func formatCourtsList(out io.Writer, ct config.Courts, defaultKey string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KEY\tNAME\tSEARCH\tDELAY\tDEFAULT")
	for _, k := range ct.Keys() {
		p := ct[k]
		search := "no"
		if p.HasSearch() {
			search = "yes"
		}
		def := ""
		if k == defaultKey {
			def = "*"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", k, p.Name, search, p.Delay(), def)
	}
	_ = w.Flush()
}

func writeCourtYAML(out io.Writer, p config.CourtProfile) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]config.CourtProfile{p.Key: p}); err != nil {
		return eris.Wrap(err, "encode court profile")
	}
	return enc.Close()
}
