// -----------------------------------------------------------------------
// Package validation checks calculation requests before they reach the engine
// -----------------------------------------------------------------------

package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/ecocalc/internal/models"
)

// Error is a request validation failure with per-field messages keyed by JSON path
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsError returns the validation error wrapped in err, if any
func AsError(err error) (*Error, bool) {
	var verr *Error
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

// RequestValidator validates calculation requests using struct tags
type RequestValidator struct {
	validate *validator.Validate
}

// NewRequestValidator creates a validator reporting JSON field names
func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &RequestValidator{validate: v}
}

// Validate returns *Error when the request is malformed
func (v *RequestValidator) Validate(req *models.CalculationRequest) error {
	if req == nil {
		return &Error{Fields: map[string]string{"body": "is required"}}
	}

	fields := make(map[string]string)

	if err := v.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("failed to validate request: %w", err)
		}
		for _, fe := range verrs {
			fields[fieldPath(fe)] = message(fe)
		}
	}

	if req.Mode() == models.CalculationPartial && len(req.Measures) == 0 {
		if _, ok := fields["measures"]; !ok {
			fields["measures"] = "must contain at least one measure for partial calculations"
		}
	}

	if len(fields) > 0 {
		return &Error{Fields: fields}
	}
	return nil
}

// fieldPath drops the root struct name from the namespace,
// e.g. "CalculationRequest.measures[0].type" -> "measures[0].type"
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_if":
		return "is required for full calculations"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	default:
		return "is invalid (" + fe.Tag() + ")"
	}
}
