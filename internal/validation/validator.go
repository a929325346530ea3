// Package validation checks playground HTTP request bodies before they reach
// the container engine.
//
// Each action has a strict schema: unknown fields are rejected, every present
// field is type checked and bounded, and the first violation fails the whole
// request. Bounds come from configuration and are the same values advertised
// to clients through the playground metadata.
//
// It uses:
//   - tidwall/gjson (through event.ParseFields) to decode bodies without losing
//     the client's field order
//   - go-playground/validator for the per-field rules
//
// # Usage Example
//
//	v := validation.New(bounds)
//	cmd, err := v.NetworkAdd(body)
//	if err != nil {
//	    var verr *validation.ValidationError
//	    if errors.As(err, &verr) {
//	        fmt.Printf("%s: %s\n", verr.Field, verr.Message)
//	    }
//	}
package validation

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"evalgo.org/playground/internal/event"
)

// Action names accepted by the HTTP API.
const (
	ActionNetworkAdd    = "network_add"
	ActionNetworkEdit   = "network_edit"
	ActionNetworkDelete = "network_delete"
	ActionProxyAdd      = "proxy_add"
	ActionProxyDelete   = "proxy_delete"
	ActionServiceAdd    = "service_add"
	ActionServiceDelete = "service_delete"
)

// maxPortMappings caps the number of host ports one proxy may publish.
const maxPortMappings = 10

var resourceNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Bounds are the configurable limits applied to request fields.
type Bounds struct {
	MinNameLength         int
	MaxNameLength         int
	MinConfigLength       int
	MaxConfigLength       int
	MaxNetworkConnections int
}

// ValidationError reports the first field that failed validation.
type ValidationError struct {
	// Field is the offending field, or "document" for undecodable bodies
	Field string `json:"field"`

	// Message describes why the validation failed
	Message string `json:"message"`

	// Bound is the rule that was violated, e.g. "max=32" or "unknown"
	Bound string `json:"bound,omitempty"`
}

func (e *ValidationError) Error() string {
	if e.Bound != "" {
		return fmt.Sprintf("invalid %s (%s): %s", e.Field, e.Bound, e.Message)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// Validator applies per-action schemas to raw request bodies.
type Validator struct {
	fieldValidator *validator.Validate
	bounds         Bounds
	schemas        map[string]schema
}

// New creates a Validator enforcing bounds.
func New(bounds Bounds) *Validator {
	fv := validator.New()
	// registration only fails for an empty tag or nil func
	_ = fv.RegisterValidation("resourcename", func(fl validator.FieldLevel) bool {
		return resourceNamePattern.MatchString(fl.Field().String())
	})

	v := &Validator{
		fieldValidator: fv,
		bounds:         bounds,
	}
	v.schemas = v.buildSchemas()
	return v
}

// Bounds returns the limits this validator enforces.
func (v *Validator) Bounds() Bounds {
	return v.bounds
}

// Validate decodes data and checks it against the schema for action. The
// returned fields keep the client's order.
func (v *Validator) Validate(action string, data []byte) (event.Fields, error) {
	s, ok := v.schemas[action]
	if !ok {
		return nil, &ValidationError{Field: "action", Message: fmt.Sprintf("unknown action %q", action), Bound: "unknown"}
	}

	fields, err := event.ParseFields(data)
	if err != nil {
		return nil, &ValidationError{Field: "document", Message: err.Error()}
	}

	for _, key := range fields.Keys() {
		if _, known := s.rule(key); !known {
			return nil, &ValidationError{Field: key, Message: "field is not allowed", Bound: "unknown"}
		}
	}

	for _, r := range s {
		value, present := fields.Get(r.field)
		if !present {
			if r.required {
				return nil, &ValidationError{Field: r.field, Message: "field is required", Bound: "required"}
			}
			continue
		}
		if err := r.check(value); err != nil {
			return nil, err
		}
	}

	return fields, nil
}

// portValidator checks port mappings, whose rules do not depend on Bounds.
var portValidator = validator.New()

// checkVar runs a validator tag against one value and converts the failure.
func (v *Validator) checkVar(field string, value interface{}, tag string) error {
	return checkVar(v.fieldValidator, field, value, tag)
}

func checkVar(fv *validator.Validate, field string, value interface{}, tag string) error {
	err := fv.Var(value, tag)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		bound := fe.Tag()
		if fe.Param() != "" {
			bound = bound + "=" + fe.Param()
		}
		return &ValidationError{Field: field, Message: describe(fe), Bound: bound}
	}
	return &ValidationError{Field: field, Message: err.Error()}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "value must not be empty"
	case "min":
		return fmt.Sprintf("must be at least %s long", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s long", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "resourcename":
		return "must start with a letter or digit and contain only letters, digits, '_', '.' or '-'"
	case "alphanum":
		return "must contain only letters and digits"
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}
