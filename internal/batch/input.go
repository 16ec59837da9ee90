package batch

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/case-extractor/internal/config"
	"github.com/sells-group/case-extractor/internal/model"
)

// ReadCases loads a batch descriptor. CSV and XLSX files need a
// case_number column and may carry a url column; JSON files hold an array
// of {case_number, url} objects. A row without a url takes it from
// court's case URL template; court may be nil when every row has a url.
func ReadCases(path string, court *config.CourtProfile) ([]model.BatchCase, error) {
	var (
		cases []model.BatchCase
		err   error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		var f *os.File
		f, err = os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "input: open %s", path)
		}
		defer f.Close()
		cases, err = ReadCSV(f)
	case ".xlsx":
		cases, err = ReadXLSX(path)
	case ".json":
		var f *os.File
		f, err = os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "input: open %s", path)
		}
		defer f.Close()
		cases, err = ReadJSON(f)
	default:
		return nil, eris.Errorf("input: unsupported file type %q (want .csv, .xlsx or .json)", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	return FillURLs(cases, court)
}

// ReadCSV reads a descriptor from CSV with a header row.
func ReadCSV(r io.Reader) ([]model.BatchCase, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "input: read csv")
	}
	return fromRows(rows)
}

// ReadXLSX reads a descriptor from the first sheet of a workbook.
func ReadXLSX(path string) ([]model.BatchCase, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "input: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("input: xlsx has no sheets")
	}

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, c := range row.Cells {
			cells[j] = c.String()
		}
		rows = append(rows, cells)
	}
	return fromRows(rows)
}

// ReadJSON reads a descriptor from a JSON array.
func ReadJSON(r io.Reader) ([]model.BatchCase, error) {
	var raw []model.BatchCase
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, eris.Wrap(err, "input: decode json")
	}
	cases := raw[:0]
	for _, c := range raw {
		c.CaseNumber = strings.TrimSpace(c.CaseNumber)
		c.URL = strings.TrimSpace(c.URL)
		if c.CaseNumber == "" && c.URL == "" {
			continue
		}
		cases = append(cases, c)
	}
	return cases, nil
}

// fromRows maps a header row plus data rows onto cases. Blank rows are
// skipped.
func fromRows(rows [][]string) ([]model.BatchCase, error) {
	if len(rows) == 0 {
		return nil, eris.New("input: file is empty")
	}

	caseCol, urlCol := -1, -1
	for i, h := range rows[0] {
		switch normalizeHeader(h) {
		case "case_number", "casenumber", "case":
			caseCol = i
		case "url", "case_url", "link":
			urlCol = i
		}
	}
	if caseCol < 0 {
		return nil, eris.Errorf("input: no case_number column in header %v", rows[0])
	}

	var cases []model.BatchCase
	for _, row := range rows[1:] {
		c := model.BatchCase{CaseNumber: cell(row, caseCol)}
		if urlCol >= 0 {
			c.URL = cell(row, urlCol)
		}
		if c.CaseNumber == "" && c.URL == "" {
			continue
		}
		cases = append(cases, c)
	}
	return cases, nil
}

// FillURLs builds missing URLs from court's template. Every returned case
// has a case number.
func FillURLs(cases []model.BatchCase, court *config.CourtProfile) ([]model.BatchCase, error) {
	for i, c := range cases {
		if c.CaseNumber == "" {
			return nil, eris.Errorf("input: row %d has a url but no case number", i+1)
		}
		if c.URL != "" {
			continue
		}
		if court == nil {
			return nil, eris.Errorf("input: case %s has no url and no court profile was given", c.CaseNumber)
		}
		u, err := court.CaseURL(c.CaseNumber)
		if err != nil {
			return nil, eris.Wrapf(err, "input: case %s", c.CaseNumber)
		}
		cases[i].URL = u
	}
	return cases, nil
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	return strings.ReplaceAll(h, " ", "_")
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// WriteDescriptor writes cases as a case_number,url CSV that ReadCSV
// accepts.
func WriteDescriptor(w io.Writer, cases []model.BatchCase) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"case_number", "url"}); err != nil {
		return eris.Wrap(err, "input: write header")
	}
	for _, c := range cases {
		if err := cw.Write([]string{c.CaseNumber, c.URL}); err != nil {
			return eris.Wrap(err, "input: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "input: flush")
}
