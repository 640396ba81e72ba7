// Package inputval validates decoded JSON request bodies using
// waffle/pantry/validate struct tags.
//
//	type registerInput struct {
//	    Username string `json:"username" validate:"required,username" label:"Username"`
//	    Password string `json:"password" validate:"required" label:"Password"`
//	}
//
//	if res := inputval.Validate(in); res.HasErrors() {
//	    jsonutil.ValidationError(w, res.First(), res.Fields())
//	    return
//	}
package inputval

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/dalemusser/stratasheet/internal/app/system/authutil"
	"github.com/dalemusser/waffle/pantry/validate"
)

// Result holds validation results with user-friendly messages.
type Result struct {
	Errors []FieldError
}

// FieldError represents a validation error for a single field.
type FieldError struct {
	Field   string
	Label   string
	Message string
}

// HasErrors returns true if there are any validation errors.
func (r *Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// First returns the first error message, or empty string if no errors.
func (r *Result) First() string {
	if len(r.Errors) > 0 {
		return r.Errors[0].Message
	}
	return ""
}

// Fields maps each failing field (JSON name) to its message.
func (r *Result) Fields() map[string]string {
	if len(r.Errors) == 0 {
		return nil
	}
	out := make(map[string]string, len(r.Errors))
	for _, e := range r.Errors {
		if _, seen := out[e.Field]; !seen {
			out[e.Field] = e.Message
		}
	}
	return out
}

// customValidator is a singleton validator with custom rules registered.
var (
	customValidator *validate.Validator
	validatorOnce   sync.Once
)

// getValidator returns the singleton validator with custom rules.
func getValidator() *validate.Validator {
	validatorOnce.Do(func() {
		customValidator = validate.New(validate.WithStopOnFirstError())

		// username: the registration rules from authutil
		customValidator.RegisterRuleFunc("username", func(value any) bool {
			if s, ok := value.(string); ok {
				_, err := authutil.ValidateUsername(s)
				return err == nil
			}
			return false
		}, "username")

		// notblank: rejects strings that are only whitespace
		customValidator.RegisterRuleFunc("notblank", func(value any) bool {
			if s, ok := value.(string); ok {
				return strings.TrimSpace(s) != ""
			}
			return false
		}, "notblank")
	})
	return customValidator
}

// Validate runs the struct's `validate` tags and converts failures to
// messages built from each field's `label` tag (or its JSON name).
//
// Rules from pantry/validate: required, oneof, min, max.
// Rules registered here: username, notblank.
func Validate(s any) *Result {
	result := &Result{}

	var errs validate.Errors
	if err := getValidator().Struct(s); !errors.As(err, &errs) {
		return result
	}

	labels := labelsFor(reflect.TypeOf(s))
	for _, e := range errs {
		label := labels[e.Field]
		if label == "" {
			label = e.Field
		}
		result.Errors = append(result.Errors, FieldError{
			Field:   e.Field,
			Label:   label,
			Message: formatMessage(label, e.Rule, e.Param),
		})
	}
	return result
}

// labelCache maps reflect.Type to its JSON-name -> label map.
var labelCache sync.Map

func labelsFor(t reflect.Type) map[string]string {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	if m, ok := labelCache.Load(t); ok {
		return m.(map[string]string)
	}

	labels := make(map[string]string)
	for i := range t.NumField() {
		f := t.Field(i)
		label := f.Tag.Get("label")
		if label == "" {
			continue
		}
		name := f.Name
		if tag, _, _ := strings.Cut(f.Tag.Get("json"), ","); tag != "" && tag != "-" {
			name = tag
		}
		labels[name] = label
	}
	labelCache.Store(t, labels)
	return labels
}

var ruleMessages = map[string]string{
	"required": "%s is required.",
	"notblank": "%s is required.",
	"oneof":    "%s must be one of: %s.",
	"enum":     "%s must be one of: %s.",
	"min":      "%s must be at least %s characters.",
	"max":      "%s must be at most %s characters.",
	"username": "%s must be 3-50 characters of letters, digits, spaces or . _ - @.",
}

func formatMessage(label, rule, param string) string {
	format, ok := ruleMessages[rule]
	if !ok {
		return label + " is invalid."
	}
	switch rule {
	case "oneof", "enum":
		return fmt.Sprintf(format, label, strings.ReplaceAll(param, " ", ", "))
	case "min", "max":
		return fmt.Sprintf(format, label, param)
	default:
		return fmt.Sprintf(format, label)
	}
}
