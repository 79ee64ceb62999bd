// Package schemas validates model output against the JSON Schemas embedded
// in this package.
package schemas

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Schema names, one per generative stage.
const (
	JDAnalysis = "jd_analysis"
	Rewrite    = "rewrite"
	ATSScore   = "ats_score"
	GapReport  = "gap_report"
)

//go:embed *.schema.json
var schemaFiles embed.FS

var (
	compiled   = make(map[string]*gojsonschema.Schema)
	compiledMu sync.Mutex
)

// ValidationError lists every schema violation of one document.
type ValidationError struct {
	Schema string
	Errors []FieldError
}

// FieldError is a single violation at a field path.
type FieldError struct {
	Field   string
	Type    string
	Message string
}

func (ve *ValidationError) Error() string {
	parts := make([]string, 0, len(ve.Errors))
	for _, e := range ve.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	if ve.Schema == "" {
		return "schema validation failed: " + strings.Join(parts, "; ")
	}
	return fmt.Sprintf("%s schema validation failed: %s", ve.Schema, strings.Join(parts, "; "))
}

// MissingFields returns the names of required properties that were absent.
func (ve *ValidationError) MissingFields() []string {
	var out []string
	for _, e := range ve.Errors {
		if e.Type == "required" {
			out = append(out, e.Field)
		}
	}
	sort.Strings(out)
	return out
}

// SchemaLoadError represents errors loading or compiling a schema.
type SchemaLoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Path, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

// Validate checks a decoded JSON document against the named embedded schema.
func Validate(name string, document any) error {
	schema, err := load(name)
	if err != nil {
		return err
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(document))
	if err != nil {
		return &SchemaLoadError{Path: name, Message: "document could not be loaded", Cause: err}
	}
	return toValidationError(name, result)
}

func load(name string) (*gojsonschema.Schema, error) {
	compiledMu.Lock()
	defer compiledMu.Unlock()

	if s, ok := compiled[name]; ok {
		return s, nil
	}
	path := name + ".schema.json"
	data, err := schemaFiles.ReadFile(path)
	if err != nil {
		return nil, &SchemaLoadError{Path: path, Message: "unknown schema", Cause: err}
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, &SchemaLoadError{Path: path, Message: "invalid schema", Cause: err}
	}
	compiled[name] = s
	return s, nil
}

func toValidationError(name string, result *gojsonschema.Result) error {
	if result.Valid() {
		return nil
	}
	ve := &ValidationError{Schema: name, Errors: make([]FieldError, 0, len(result.Errors()))}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if desc.Type() == "required" {
			if prop, ok := desc.Details()["property"].(string); ok {
				field = prop
			}
		}
		if field == "" {
			field = "(root)"
		}
		ve.Errors = append(ve.Errors, FieldError{
			Field:   field,
			Type:    desc.Type(),
			Message: desc.Description(),
		})
	}
	return ve
}
