package inference

import (
	"fmt"
	"strings"

	"github.com/sells-group/case-extractor/internal/model"
)

// fieldGuidance describes each record field to the model.
var fieldGuidance = map[string]string{
	"client_name":    "Full name of the defendant/client",
	"next_date":      "Next court date (format: YYYY-MM-DD if possible)",
	"charges":        "All charges listed (comma-separated if multiple)",
	"attorney":       "Attorney name(s)",
	"judge":          "Judge name",
	"division":       "Court division/department",
	"status":         "Case status",
	"bond_amount":    "Bond/bail amount",
	"arrest_date":    "Date of arrest",
	"filing_date":    "Filing/charge date",
	"disposition":    "Case disposition if any",
	"plea":           "Plea information",
	"sentence":       "Sentence information if any",
	"probation_info": "Probation details",
	"prior_record":   "Prior record or criminal history noted on the page",
	"victim_info":    "Victim information (redact personal details, keep case-relevant info)",
	"notes":          "Docket notes or remarks that do not fit another field",
}

// BuildPrompt renders the extraction instruction for one case. It lists
// every record field, any court-specific extras, and the additional_fields
// catch-all.
func BuildPrompt(req Request) string {
	var b strings.Builder

	b.WriteString("You are a legal data extraction assistant helping a public defender extract case information from court website screenshots.\n\n")
	fmt.Fprintf(&b, "CASE NUMBER: %s\n", req.CaseNumber)
	if ctx := strings.TrimSpace(req.ExtraContext); ctx != "" {
		b.WriteString(ctx)
		b.WriteString("\n")
	}
	b.WriteString("\nAnalyze this screenshot of a case details page and extract ALL visible information into a structured JSON format.\n\n")
	b.WriteString("Extract the following fields if visible (use null for missing data):\n")
	for _, f := range model.CaseFields {
		fmt.Fprintf(&b, "- %s: %s\n", f, fieldGuidance[f])
	}
	if len(req.CustomFields) > 0 {
		b.WriteString("\nThis court also reports the following; put them inside additional_fields when visible:\n")
		for _, f := range req.CustomFields {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	b.WriteString("- additional_fields: Any other important fields you see as key-value pairs\n\n")

	b.WriteString("CRITICAL INSTRUCTIONS:\n")
	b.WriteString("1. Extract ALL visible text data, even if uncertain about field names\n")
	b.WriteString("2. Be precise with dates - convert to YYYY-MM-DD format when possible\n")
	b.WriteString("3. For unclear fields, include them in \"additional_fields\" with descriptive keys\n")
	b.WriteString("4. If multiple values exist (e.g., multiple charges), list them all\n")
	b.WriteString("5. Preserve exact legal terminology and case numbers\n")
	b.WriteString("6. Return ONLY valid JSON, no additional commentary\n\n")
	b.WriteString("Return the data as a JSON object.")

	return b.String()
}
