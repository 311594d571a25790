package validation

import (
	"fmt"
	"strings"

	"github.com/kbukum/entitypipe/errors"
)

// Validator collects validation errors.
type Validator struct {
	errors []FieldError
}

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New creates a new Validator.
func New() *Validator {
	return &Validator{errors: make([]FieldError, 0)}
}

// AddError adds a field error.
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, FieldError{Field: field, Message: message})
}

// HasErrors returns true if there are validation errors.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors.
func (v *Validator) Errors() []FieldError {
	return v.errors
}

// Merge folds the field errors of err into v, prefixing each field. Errors
// that carry no field details are recorded against the prefix itself.
func (v *Validator) Merge(prefix string, err error) *Validator {
	if err == nil {
		return v
	}
	appErr, ok := errors.AsAppError(err)
	if !ok {
		v.AddError(prefix, err.Error())
		return v
	}
	fields, ok := appErr.Details["fields"].([]FieldError)
	if !ok {
		v.AddError(prefix, appErr.Message)
		return v
	}
	for _, f := range fields {
		name := f.Field
		if prefix != "" {
			name = prefix + "." + name
		}
		v.AddError(name, f.Message)
	}
	return v
}

// Validate returns an AppError if there are validation errors, nil otherwise.
func (v *Validator) Validate() *errors.AppError {
	if !v.HasErrors() {
		return nil
	}

	messages := make([]string, len(v.errors))
	for i, e := range v.errors {
		messages[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}

	return errors.Validation(strings.Join(messages, "; ")).WithDetail("fields", v.errors)
}

// Required checks if a string is non-empty.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "is required")
	}
	return v
}

// Identifier checks that a non-empty value is a valid pipeline or type name.
func (v *Validator) Identifier(field, value string) *Validator {
	if value != "" && !identifierPattern.MatchString(value) {
		v.AddError(field, "must start with a letter and contain only letters, digits, '.', '_' or '-'")
	}
	return v
}

// Unique records an error for every value seen more than once.
func (v *Validator) Unique(field string, values []string) *Validator {
	seen := make(map[string]bool, len(values))
	for _, val := range values {
		if seen[val] {
			v.AddError(field, fmt.Sprintf("duplicate value %q", val))
		}
		seen[val] = true
	}
	return v
}
