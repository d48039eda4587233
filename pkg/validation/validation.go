// Package validation wraps go-playground/validator for request DTOs.
//
// Structs declare rules in `validate` tags and the client-facing message for
// a field in a `msg` tag; Struct reports only the first failing rule.
package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	id "lifeflow/pkg/domain"
	dErrors "lifeflow/pkg/domain-errors"
)

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("bloodtype", func(fl validator.FieldLevel) bool {
		return id.BloodType(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	return &Validator{validate: v}
}

var defaultValidator = New()

// Struct validates s with the package default validator.
func Struct(s any) error {
	return defaultValidator.Struct(s)
}

// Struct validates s and returns a CodeValidation domain error carrying the
// first failing field's message.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid request")
	}
	return dErrors.New(dErrors.CodeValidation, messageFor(s, fieldErrs[0]))
}

func messageFor(s any, fe validator.FieldError) string {
	if msg := lookupMsgTag(reflect.TypeOf(s), fe.StructNamespace()); msg != "" {
		return msg
	}
	field := fe.Field()
	switch fe.Tag() {
	case "required", "notblank":
		return field + " is required"
	case "email":
		return "Please provide a valid email"
	case "bloodtype":
		return "Please provide a valid blood type"
	case "min":
		return field + " must be at least " + fe.Param()
	case "max":
		return field + " must be at most " + fe.Param()
	case "oneof":
		return field + " must be one of: " + fe.Param()
	default:
		return field + " is invalid"
	}
}

// lookupMsgTag walks a namespace like "CreateDonorRequest.ContactInfo.Phone"
// down the struct type and returns the leaf's `msg` tag.
func lookupMsgTag(t reflect.Type, namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) < 2 {
		return ""
	}
	var msg string
	for _, name := range parts[1:] {
		for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice {
			t = t.Elem()
		}
		if t.Kind() != reflect.Struct {
			return ""
		}
		if i := strings.IndexByte(name, '['); i >= 0 {
			name = name[:i]
		}
		f, ok := t.FieldByName(name)
		if !ok {
			return ""
		}
		msg = f.Tag.Get("msg")
		t = f.Type
	}
	return msg
}
