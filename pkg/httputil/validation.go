package httputil

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/idcheck/mrzscan/pkg/errors"
)

var validate = newValidator()

// newValidator reports fields by their JSON name, falling back to the Go
// field name for untagged fields.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks v's validate tags and returns a VALIDATION_ERROR with one
// message per failing field.
func Validate(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.BadRequest("invalid request")
	}

	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = validationMessage(fe)
	}
	return errors.Validation(details)
}

var validationMessages = map[string]string{
	"required":   "this field is required",
	"min":        "must be at least %s characters",
	"max":        "must be at most %s characters",
	"oneof":      "must be one of: %s",
	"uuid4":      "must be a valid UUID",
	"printascii": "must contain printable ASCII only",
}

func validationMessage(fe validator.FieldError) string {
	msg, ok := validationMessages[fe.Tag()]
	if !ok {
		return "invalid value"
	}
	return strings.Replace(msg, "%s", fe.Param(), 1)
}
