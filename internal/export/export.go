// Package export writes extracted case records to CSV, JSON and XLSX files.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/case-extractor/internal/config"
	"github.com/sells-group/case-extractor/internal/model"
)

// Format is an output file type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// ParseFormats validates format names, dropping duplicates.
func ParseFormats(names []string) ([]Format, error) {
	seen := map[Format]bool{}
	var out []Format
	for _, n := range names {
		f := Format(strings.ToLower(strings.TrimSpace(n)))
		switch f {
		case FormatCSV, FormatJSON, FormatXLSX:
		default:
			return nil, eris.Errorf("export: unknown format %q", n)
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

// BaseName returns the output file name without extension: the court's
// CSV filename template when it has one, else extracted_cases_<timestamp>.
func BaseName(now time.Time, court *config.CourtProfile) string {
	if court != nil {
		if name := court.CSVFilename(now); name != "" {
			return strings.TrimSuffix(name, filepath.Ext(name))
		}
	}
	return "extracted_cases_" + now.Format("20060102_150405")
}

// WriteAll writes records to dir/base.<ext> for every format and returns
// the paths written. Nothing is written for an empty record set.
func WriteAll(ctx context.Context, dir, base string, records []*model.CaseRecord, formats []Format) ([]string, error) {
	if len(records) == 0 {
		zap.L().Info("export: no records, nothing written")
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "export: create dir %s", dir)
	}

	paths := make([]string, len(formats))
	g, _ := errgroup.WithContext(ctx)
	for i, f := range formats {
		path := filepath.Join(dir, base+"."+string(f))
		paths[i] = path
		g.Go(func() error {
			switch f {
			case FormatCSV:
				return WriteCSV(path, records)
			case FormatJSON:
				return WriteJSON(path, records)
			case FormatXLSX:
				return WriteXLSX(path, records)
			}
			return eris.Errorf("export: unknown format %q", f)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	zap.L().Info("export: results saved", zap.Strings("paths", paths), zap.Int("records", len(records)))
	return paths, nil
}

// Columns returns the tabular columns, sorted. raw_extraction is left out.
func Columns() []string {
	cols := append([]string{"case_number", "extracted_at", "page_url"}, model.CaseFields...)
	sort.Strings(cols)
	return cols
}

// Row renders rec in Columns order. Nil fields become empty cells.
func Row(rec *model.CaseRecord, cols []string) []string {
	row := make([]string, len(cols))
	for i, c := range cols {
		switch c {
		case "case_number":
			row[i] = rec.CaseNumber
		case "page_url":
			row[i] = rec.PageURL
		case "extracted_at":
			if !rec.ExtractedAt.IsZero() {
				row[i] = rec.ExtractedAt.Format(time.RFC3339)
			}
		default:
			if v := rec.Field(c); v != nil {
				row[i] = *v
			}
		}
	}
	return row
}

// WriteCSV writes records as CSV with a header row.
func WriteCSV(path string, records []*model.CaseRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create csv")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	cols := Columns()
	if err := w.Write(cols); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, rec := range records {
		if err := w.Write(Row(rec, cols)); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "export: flush csv")
	}
	return eris.Wrap(f.Close(), "export: close csv")
}

// WriteJSON writes records as an indented JSON array, nulls and
// raw_extraction included.
func WriteJSON(path string, records []*model.CaseRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return eris.Wrap(err, "export: marshal json")
	}
	return eris.Wrap(os.WriteFile(path, append(data, '\n'), 0o644), "export: write json")
}

// WriteXLSX writes records to a single-sheet workbook.
func WriteXLSX(path string, records []*model.CaseRecord) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Cases")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	cols := Columns()
	addRow(sheet, cols)
	for _, rec := range records {
		addRow(sheet, Row(rec, cols))
	}
	return eris.Wrap(f.Save(path), "export: save xlsx")
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
