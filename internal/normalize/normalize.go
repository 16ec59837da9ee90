// Package normalize turns the free-form text a vision model returns into a
// JSON object shaped like a case record.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/case-extractor/internal/model"
)

const (
	// KeyAdditional holds keys the model returned outside the fixed schema.
	KeyAdditional = "additional_fields"
	// KeyError and KeyRawResponse make up the parse-failure payload.
	KeyError       = "error"
	KeyRawResponse = "raw_response"
)

// Failure describes a reply that could not be read as a JSON object.
type Failure struct {
	Raw string
	Err error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("Failed to parse JSON: %v", f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// StripFences removes markdown code fences and surrounding whitespace from a
// model reply. Nested or doubled fences are peeled until none remain.
func StripFences(text string) string {
	for {
		next := stripFencesOnce(text)
		if next == text {
			return next
		}
		text = next
	}
}

func stripFencesOnce(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// Parse strips fences and decodes the reply. Anything other than a single
// JSON object is a *Failure.
func Parse(text string) (map[string]any, error) {
	var v any
	if err := json.Unmarshal([]byte(StripFences(text)), &v); err != nil {
		return nil, &Failure{Raw: text, Err: err}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &Failure{Raw: text, Err: eris.Errorf("expected a JSON object, got %s", jsonKind(v))}
	}
	return obj, nil
}

// Normalize parses a reply and folds keys outside the record schema under
// additional_fields. It never fails: an unreadable reply becomes a
// diagnostic payload carrying the parse error and the original text.
func Normalize(text string) map[string]any {
	payload, err := Parse(text)
	if err != nil {
		return Sentinel(err, text)
	}
	return foldUnknown(payload)
}

// Sentinel builds the diagnostic payload for a reply that failed to parse.
func Sentinel(err error, raw string) map[string]any {
	msg := err.Error()
	var f *Failure
	if !errors.As(err, &f) {
		msg = "Failed to parse JSON: " + msg
	}
	return map[string]any{
		KeyError:       msg,
		KeyRawResponse: raw,
	}
}

// IsSentinel reports whether a normalized payload is the parse-failure
// payload.
func IsSentinel(payload map[string]any) bool {
	if len(payload) != 2 {
		return false
	}
	_, hasErr := payload[KeyError]
	_, hasRaw := payload[KeyRawResponse]
	return hasErr && hasRaw
}

func isKnownKey(k string) bool {
	return k == "case_number" || k == KeyAdditional || model.IsCaseField(k)
}

func foldUnknown(payload map[string]any) map[string]any {
	extras := map[string]any{}
	for k, v := range payload {
		if !isKnownKey(k) {
			extras[k] = v
			delete(payload, k)
		}
	}
	if len(extras) == 0 {
		return payload
	}

	switch existing := payload[KeyAdditional].(type) {
	case map[string]any:
		for k, v := range extras {
			name := k
			for i := 2; ; i++ {
				if _, taken := existing[name]; !taken {
					break
				}
				name = fmt.Sprintf("%s_%d", k, i)
			}
			existing[name] = v
		}
	case nil:
		payload[KeyAdditional] = extras
	default:
		// Keep a scalar or list the model put there.
		extras["value"] = existing
		payload[KeyAdditional] = extras
	}
	return payload
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	}
	return fmt.Sprintf("%T", v)
}
