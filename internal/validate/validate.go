// Package validate runs struct-tag validation on service commands and turns
// the failures into apperr validation errors keyed by JSON field name.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"manageease/internal/apperr"
)

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New()
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return val
}

// Struct validates s against its `validate` tags.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	fields := map[string]string{}
	if !collect(err, "", fields) {
		return err
	}
	return apperr.Validation(fields)
}

// Fields accumulates per-field checks for partial updates, where only the
// supplied fields are validated.
type Fields map[string]string

// Check validates value against tag and records a failure under name.
func (f Fields) Check(name string, value any, tag string) {
	if _, seen := f[name]; seen {
		return
	}
	if err := v.Var(value, tag); err != nil {
		collect(err, name, f)
	}
}

// Add records a failure that was detected outside the validator.
func (f Fields) Add(name, msg string) {
	if _, seen := f[name]; !seen {
		f[name] = msg
	}
}

// Err returns nil when no check failed.
func (f Fields) Err() error {
	if len(f) == 0 {
		return nil
	}
	return apperr.Validation(f)
}

func collect(err error, name string, fields map[string]string) bool {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return false
	}
	for _, fe := range verrs {
		field := name
		if field == "" {
			field = fieldPath(fe)
		}
		if _, seen := fields[field]; !seen {
			fields[field] = message(field, fe)
		}
	}
	return true
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s cannot have more than %s items", field, fe.Param())
		}
		return fmt.Sprintf("%s cannot exceed %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
