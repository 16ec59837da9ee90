package model

import "time"

// CaseFields lists the extracted fields of a CaseRecord in schema order.
var CaseFields = []string{
	"client_name",
	"next_date",
	"charges",
	"attorney",
	"judge",
	"division",
	"status",
	"bond_amount",
	"arrest_date",
	"filing_date",
	"disposition",
	"plea",
	"sentence",
	"probation_info",
	"prior_record",
	"victim_info",
	"notes",
}

// IsCaseField reports whether name is one of the fixed extracted fields.
func IsCaseField(name string) bool {
	for _, f := range CaseFields {
		if f == name {
			return true
		}
	}
	return false
}

// CaseRecord is the normalized extraction for one court case. Extracted
// fields are nil when the page did not show them.
type CaseRecord struct {
	CaseNumber    string         `json:"case_number"`
	ClientName    *string        `json:"client_name"`
	NextDate      *string        `json:"next_date"`
	Charges       *string        `json:"charges"`
	Attorney      *string        `json:"attorney"`
	Judge         *string        `json:"judge"`
	Division      *string        `json:"division"`
	Status        *string        `json:"status"`
	BondAmount    *string        `json:"bond_amount"`
	ArrestDate    *string        `json:"arrest_date"`
	FilingDate    *string        `json:"filing_date"`
	Disposition   *string        `json:"disposition"`
	Plea          *string        `json:"plea"`
	Sentence      *string        `json:"sentence"`
	ProbationInfo *string        `json:"probation_info"`
	PriorRecord   *string        `json:"prior_record"`
	VictimInfo    *string        `json:"victim_info"`
	Notes         *string        `json:"notes"`
	PageURL       string         `json:"page_url"`
	ExtractedAt   time.Time      `json:"extracted_at"`
	RawExtraction map[string]any `json:"raw_extraction"`
}

// fieldPtr returns the storage slot for an extracted field, or nil for an
// unknown name.
func (r *CaseRecord) fieldPtr(name string) **string {
	switch name {
	case "client_name":
		return &r.ClientName
	case "next_date":
		return &r.NextDate
	case "charges":
		return &r.Charges
	case "attorney":
		return &r.Attorney
	case "judge":
		return &r.Judge
	case "division":
		return &r.Division
	case "status":
		return &r.Status
	case "bond_amount":
		return &r.BondAmount
	case "arrest_date":
		return &r.ArrestDate
	case "filing_date":
		return &r.FilingDate
	case "disposition":
		return &r.Disposition
	case "plea":
		return &r.Plea
	case "sentence":
		return &r.Sentence
	case "probation_info":
		return &r.ProbationInfo
	case "prior_record":
		return &r.PriorRecord
	case "victim_info":
		return &r.VictimInfo
	case "notes":
		return &r.Notes
	}
	return nil
}

// Field returns the value of an extracted field by name.
func (r *CaseRecord) Field(name string) *string {
	p := r.fieldPtr(name)
	if p == nil {
		return nil
	}
	return *p
}

// SetField assigns an extracted field by name. It reports false for names
// outside CaseFields.
func (r *CaseRecord) SetField(name string, v *string) bool {
	p := r.fieldPtr(name)
	if p == nil {
		return false
	}
	*p = v
	return true
}

// FieldsFound counts the extracted fields that carry a value.
func (r *CaseRecord) FieldsFound() int {
	n := 0
	for _, f := range CaseFields {
		if r.Field(f) != nil {
			n++
		}
	}
	return n
}

// BatchCase identifies one case to extract.
type BatchCase struct {
	CaseNumber string `json:"case_number"`
	URL        string `json:"url"`
}

// Extraction is the successful result of one case pipeline run.
type Extraction struct {
	Record         *CaseRecord `json:"record"`
	ScreenshotPath string      `json:"screenshot_path"`
	// Degraded is set when the model reply could not be parsed and the
	// record carries only the diagnostic payload.
	Degraded       bool     `json:"degraded"`
	SchemaWarnings []string `json:"schema_warnings,omitempty"`
}
