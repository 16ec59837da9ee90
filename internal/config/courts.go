package config

import (
	"errors"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// SearchSelectors locate the elements of a court's case search form.
type SearchSelectors struct {
	CaseNumberInput string `yaml:"case_number_input" json:"case_number_input"`
	SearchButton    string `yaml:"search_button" json:"search_button"`
	ResultLink      string `yaml:"result_link" json:"result_link"`
}

// CourtProfile describes how to reach and pace requests against one court
// records site.
type CourtProfile struct {
	Key                 string          `yaml:"-" json:"key"`
	Name                string          `yaml:"name" json:"name"`
	BaseURL             string          `yaml:"base_url" json:"base_url"`
	CaseURLTemplate     string          `yaml:"case_url_template" json:"case_url_template"`
	WaitSelector        string          `yaml:"wait_selector" json:"wait_selector,omitempty"`
	WaitTimeoutMs       int             `yaml:"wait_timeout" json:"wait_timeout"`
	AdditionalWaitMs    int             `yaml:"additional_wait" json:"additional_wait"`
	RateLimitSeconds    float64         `yaml:"rate_limit_seconds" json:"rate_limit_seconds"`
	BatchSize           int             `yaml:"batch_size" json:"batch_size"`
	BatchPauseSeconds   int             `yaml:"batch_pause_seconds" json:"batch_pause_seconds"`
	SearchURL           string          `yaml:"search_url" json:"search_url,omitempty"`
	SearchSelectors     SearchSelectors `yaml:"search_selectors" json:"search_selectors"`
	LinkSelector        string          `yaml:"link_selector" json:"link_selector,omitempty"`
	CustomFields        []string        `yaml:"custom_fields" json:"custom_fields,omitempty"`
	OutputDir           string          `yaml:"output_dir" json:"output_dir,omitempty"`
	CSVFilenameTemplate string          `yaml:"csv_filename_template" json:"csv_filename_template,omitempty"`
	Notes               string          `yaml:"notes" json:"notes,omitempty"`
}

// CaseURL fills the profile's URL template with a case number.
func (p CourtProfile) CaseURL(caseNumber string) (string, error) {
	if p.CaseURLTemplate == "" {
		return "", eris.Errorf("config: court %q has no case_url_template", p.Key)
	}
	if !strings.Contains(p.CaseURLTemplate, "{case_number}") {
		return "", eris.Errorf("config: court %q case_url_template lacks {case_number}", p.Key)
	}
	return strings.ReplaceAll(p.CaseURLTemplate, "{case_number}", caseNumber), nil
}

// CSVFilename renders the profile's CSV filename template for the given day.
// It returns "" when the profile has no template.
func (p CourtProfile) CSVFilename(now time.Time) string {
	if p.CSVFilenameTemplate == "" {
		return ""
	}
	return strings.ReplaceAll(p.CSVFilenameTemplate, "{date}", now.Format("20060102"))
}

// WaitTimeout returns the element wait bound.
func (p CourtProfile) WaitTimeout() time.Duration {
	return time.Duration(p.WaitTimeoutMs) * time.Millisecond
}

// SettleDelay returns the post-wait settle delay.
func (p CourtProfile) SettleDelay() time.Duration {
	return time.Duration(p.AdditionalWaitMs) * time.Millisecond
}

// Delay returns the pause between consecutive cases.
func (p CourtProfile) Delay() time.Duration {
	return time.Duration(p.RateLimitSeconds * float64(time.Second))
}

// BatchPause returns the pause taken after every BatchSize cases.
func (p CourtProfile) BatchPause() time.Duration {
	return time.Duration(p.BatchPauseSeconds) * time.Second
}

// HasSearch reports whether the profile can drive a search form.
func (p CourtProfile) HasSearch() bool {
	s := p.SearchSelectors
	return p.SearchURL != "" && s.CaseNumberInput != "" && s.SearchButton != "" && s.ResultLink != ""
}

// Courts is a set of court profiles keyed by short name.
type Courts map[string]CourtProfile

// Get returns the named profile.
func (c Courts) Get(key string) (CourtProfile, error) {
	p, ok := c[key]
	if !ok {
		return CourtProfile{}, eris.Errorf("config: unknown court %q (available: %s)", key, strings.Join(c.Keys(), ", "))
	}
	return p, nil
}

// Keys returns the profile keys in sorted order.
func (c Courts) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DefaultCourts returns the built-in court profiles.
func DefaultCourts() Courts {
	return Courts{
		"palm_beach": {
			Key:               "palm_beach",
			Name:              "Palm Beach County Court",
			BaseURL:           "https://appsgp.mypalmbeachclerk.com/eCaseView/",
			CaseURLTemplate:   "https://appsgp.mypalmbeachclerk.com/eCaseView/search.aspx?caseNumber={case_number}",
			WaitSelector:      ".case-details",
			WaitTimeoutMs:     10000,
			AdditionalWaitMs:  2000,
			RateLimitSeconds:  3,
			BatchSize:         20,
			BatchPauseSeconds: 60,
			SearchURL:         "https://appsgp.mypalmbeachclerk.com/eCaseView/search.aspx",
			SearchSelectors: SearchSelectors{
				CaseNumberInput: "#caseNumber",
				SearchButton:    "#searchBtn",
				ResultLink:      ".case-link",
			},
			CustomFields:        []string{"vop_date", "public_defender_appointed", "discovery_deadline"},
			OutputDir:           "extracted_cases/palm_beach",
			CSVFilenameTemplate: "pb_cases_{date}.csv",
			Notes: "Case numbers follow 50-YYYY-CF-NNNNNN-AXXX-MB. Public access may require a CAPTCHA; " +
				"keep the rate limit at 3s or more. VOP hearings appear under a separate section.",
		},
		"broward": {
			Key:               "broward",
			Name:              "Broward County Court",
			BaseURL:           "https://www.browardclerk.org/",
			CaseURLTemplate:   "https://www.browardclerk.org/Web2/CaseSearchECA/CaseDetail?caseNumber={case_number}",
			WaitSelector:      "#caseDetails",
			WaitTimeoutMs:     15000,
			AdditionalWaitMs:  3000,
			RateLimitSeconds:  5,
			BatchSize:         10,
			BatchPauseSeconds: 120,
			SearchURL:         "https://www.browardclerk.org/Web2/CaseSearchECA/",
			SearchSelectors: SearchSelectors{
				CaseNumberInput: `input[name="caseNum"]`,
				SearchButton:    `button[type="submit"]`,
				ResultLink:      "a.caseLink",
			},
			CustomFields:        []string{"preliminary_hearing_date", "grand_jury_date"},
			OutputDir:           "extracted_cases/broward",
			CSVFilenameTemplate: "broward_cases_{date}.csv",
			Notes:               "The site is slow to render; use the longer wait timeout. Batches are limited to 10 cases.",
		},
		"my_court": {
			Key:               "my_court",
			Name:              "My Local Court",
			BaseURL:           "https://your-court-website.gov/",
			CaseURLTemplate:   "https://your-court-website.gov/case/{case_number}",
			WaitTimeoutMs:     10000,
			AdditionalWaitMs:  2000,
			RateLimitSeconds:  3,
			BatchSize:         20,
			BatchPauseSeconds: 60,
			OutputDir:         "extracted_cases/my_court",
			Notes:             "Template profile. Copy it into courts.yaml and fill in the URLs and selectors for your court.",
		},
	}
}

// LoadCourts reads court profiles from a YAML file and merges them over the
// built-in defaults. A missing file yields the defaults.
func LoadCourts(path string) (Courts, error) {
	courts := DefaultCourts()
	if path == "" {
		return courts, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return courts, nil
		}
		return nil, eris.Wrapf(err, "config: read courts file %s", path)
	}

	var file struct {
		Courts map[string]CourtProfile `yaml:"courts"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrapf(err, "config: parse courts file %s", path)
	}

	for key, p := range file.Courts {
		p.Key = key
		if p.Name == "" {
			p.Name = key
		}
		if p.WaitTimeoutMs <= 0 {
			p.WaitTimeoutMs = 10000
		}
		courts[key] = p
	}
	return courts, nil
}
