package export

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/case-extractor/internal/model"
)

// Label turns a field name like "bond_amount" into "Bond Amount".
func Label(field string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(field, "_", " "))
}

// WriteSummary prints the fields found for one case as a label/value
// table. Fields without a value are left out.
func WriteSummary(w io.Writer, ext *model.Extraction) error {
	rec := ext.Record
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Case Number\t%s\n", rec.CaseNumber)
	for _, f := range model.CaseFields {
		if v := rec.Field(f); v != nil {
			fmt.Fprintf(tw, "%s\t%s\n", Label(f), oneLine(*v))
		}
	}
	if extra, ok := rec.RawExtraction["additional_fields"].(map[string]any); ok {
		keys := make([]string, 0, len(extra))
		for k := range extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(tw, "%s\t%v\n", Label(k), extra[k])
		}
	}
	fmt.Fprintf(tw, "Fields Found\t%d/%d\n", rec.FieldsFound(), len(model.CaseFields))
	if ext.ScreenshotPath != "" {
		fmt.Fprintf(tw, "Screenshot\t%s\n", ext.ScreenshotPath)
	}
	if ext.Degraded {
		fmt.Fprintf(tw, "Warning\tmodel reply was not valid JSON; raw response kept\n")
	}
	return tw.Flush()
}

// WriteBatchSummary prints the batch counts.
func WriteBatchSummary(w io.Writer, s model.RunSummary, paths []string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Attempted\t%d\n", s.Attempted)
	fmt.Fprintf(tw, "Succeeded\t%d\n", s.Succeeded)
	fmt.Fprintf(tw, "Failed\t%d\n", s.Failed)
	for _, p := range paths {
		fmt.Fprintf(tw, "Saved\t%s\n", p)
	}
	return tw.Flush()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
