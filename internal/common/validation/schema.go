package validation

import (
	"fmt"
	"sort"
	"strings"

	"assistant-workers/internal/common/errors"
	"assistant-workers/pkg/registry"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationResult holds the outcome of validating job variables
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// ValidationError describes one schema violation
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Summary joins all errors into one line, fields in order.
func (r *ValidationResult) Summary() string {
	parts := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// Validator checks job variables against the input schemas of the activity
// registry. Schemas are compiled once.
type Validator struct {
	schemas map[string]*gojsonschema.Schema
}

// NewValidator compiles the input schema of every registered activity
func NewValidator(reg *registry.ActivityRegistry) (*Validator, error) {
	v := &Validator{schemas: make(map[string]*gojsonschema.Schema)}
	if reg == nil {
		return v, nil
	}
	for _, a := range reg.Activities {
		if len(a.InputSchema) == 0 {
			continue
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(a.InputSchema))
		if err != nil {
			return nil, fmt.Errorf("compile input schema for %s: %w", a.TaskType, err)
		}
		v.schemas[a.TaskType] = schema
	}
	return v, nil
}

// ValidateInput validates a decoded document. Task types without a schema
// always pass.
func (v *Validator) ValidateInput(taskType string, input interface{}) (*ValidationResult, error) {
	schema, ok := v.schemas[taskType]
	if !ok {
		return &ValidationResult{Valid: true}, nil
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(input))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out, nil
}

// ValidateJSON validates raw job variables and returns a StandardError
// describing every violation.
func (v *Validator) ValidateJSON(taskType, raw string) error {
	schema, ok := v.schemas[taskType]
	if !ok {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return errors.NewInvalidAnnotationInputError(fmt.Sprintf("variables are not valid JSON: %v", err))
	}
	if result.Valid() {
		return nil
	}

	res := &ValidationResult{}
	for _, desc := range result.Errors() {
		res.Errors = append(res.Errors, ValidationError{Field: desc.Field(), Message: desc.Description()})
	}
	return errors.NewSchemaValidationFailedError(taskType, res.Summary())
}
