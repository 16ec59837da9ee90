package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/sells-group/case-extractor/internal/model"
)

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// recordSchema describes a well-formed payload: every record field is a
// string or null and additional_fields is an object.
func recordSchema() map[string]any {
	props := map[string]any{
		"case_number": map[string]any{"type": []string{"string", "null"}},
		KeyAdditional: map[string]any{"type": []string{"object", "null"}},
	}
	for _, f := range model.CaseFields {
		props[f] = map[string]any{"type": []string{"string", "null"}}
	}
	return map[string]any{
		"$schema":    "http://json-schema.org/draft-07/schema#",
		"type":       "object",
		"properties": props,
	}
}

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		b, err := json.Marshal(recordSchema())
		if err != nil {
			schemaErr = eris.Wrap(err, "normalize: marshal schema")
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("case_record.json", bytes.NewReader(b)); err != nil {
			schemaErr = eris.Wrap(err, "normalize: add schema")
			return
		}
		schema, schemaErr = compiler.Compile("case_record.json")
		if schemaErr != nil {
			schemaErr = eris.Wrap(schemaErr, "normalize: compile schema")
		}
	})
	return schema, schemaErr
}

// Validate checks a normalized payload against the record schema and
// returns one warning per offending location. Values that fail the check
// are still usable; the pipeline coerces them to strings.
func Validate(payload map[string]any) []string {
	if IsSentinel(payload) {
		return nil
	}
	s, err := compiledSchema()
	if err != nil {
		return []string{err.Error()}
	}

	err = s.Validate(map[string]any(payload))
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}

	var warnings []string
	for _, e := range ve.BasicOutput().Errors {
		if e.InstanceLocation == "" || e.Error == "" {
			continue
		}
		warnings = append(warnings, fmt.Sprintf("%s: %s", e.InstanceLocation, e.Error))
	}
	sort.Strings(warnings)
	return warnings
}
