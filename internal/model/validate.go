package model

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Add appends a field error.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// NewValidationError returns a *ValidationError with a single field error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Errors: []FieldError{{Field: field, Message: message}}}
}

// ValidateFlag checks a FeatureFlag for constraint violations.
// It returns a *ValidationError if any rules fail, or nil if the flag is valid.
func ValidateFlag(f *FeatureFlag) error {
	if f == nil {
		return NewValidationError("flag", "is required")
	}

	var ve ValidationError
	validateKey(&ve, f.Key)
	validateConsumer(&ve, f.Consumer)

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateIdentity checks a key and consumer pair used for lookups and deletes.
func ValidateIdentity(key, consumer string) error {
	var ve ValidationError
	validateKey(&ve, key)
	validateConsumer(&ve, consumer)
	if ve.HasErrors() {
		return &ve
	}
	return nil
}

func validateKey(ve *ValidationError, key string) {
	if strings.TrimSpace(key) == "" {
		ve.Add("key", "is required")
	} else if utf8.RuneCountInString(key) > MaxKeyLength {
		ve.Add("key", fmt.Sprintf("must be %d characters or fewer", MaxKeyLength))
	}
}

func validateConsumer(ve *ValidationError, consumer string) {
	if utf8.RuneCountInString(consumer) > MaxConsumerLength {
		ve.Add("consumer", fmt.Sprintf("must be %d characters or fewer", MaxConsumerLength))
	}
}
