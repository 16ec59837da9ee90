package pipeline

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/case-extractor/internal/model"
)

// BuildRecord maps a normalized payload onto a CaseRecord. Missing, empty
// and "null" values become nil; the payload itself is kept as
// RawExtraction.
func BuildRecord(caseNumber, pageURL string, payload map[string]any, at time.Time) *model.CaseRecord {
	rec := &model.CaseRecord{
		CaseNumber:    caseNumber,
		PageURL:       pageURL,
		ExtractedAt:   at,
		RawExtraction: payload,
	}
	for _, f := range model.CaseFields {
		rec.SetField(f, coerce(payload[f]))
	}
	return rec
}

// coerce renders a JSON value as a field string.
func coerce(v any) *string {
	var s string
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		s = t.String()
	case bool:
		s = strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if p := coerce(item); p != nil {
				parts = append(parts, *p)
			}
		}
		s = strings.Join(parts, ", ")
	case map[string]any:
		b, err := json.Marshal(t)
		if err != nil {
			return nil
		}
		s = string(b)
	default:
		s = fmt.Sprint(t)
	}

	trimmed := strings.TrimSpace(s)
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	return &s
}
