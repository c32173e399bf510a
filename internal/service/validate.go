package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	// The timezone rule loads IANA zones; embed them so validation doesn't
	// depend on the host's zoneinfo.
	_ "time/tzdata"

	"github.com/sakif/buildermatch/internal/apperror"
)

// INPUT VALIDATION:
// Request structs declare their rules in `validate` tags. Field names in
// errors come from the json tag, so the client gets back keys it recognises
// ("workModes", not "WorkModes").
//
// Messages are looked up as "field.tag", then "field", then a generic
// message for the tag.

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateInput validates s and converts failures into a VALIDATION_FAILED
// AppError carrying one message per field.
func validateInput(s any, messages map[string]string) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("service: validating input: %w", err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		// "workModes[2]" reports against "workModes".
		if i := strings.IndexByte(field, '['); i >= 0 {
			field = field[:i]
		}
		if _, seen := fields[field]; seen {
			continue
		}
		fields[field] = messageFor(field, fe, messages)
	}
	return apperror.InvalidFields(fields)
}

func messageFor(field string, fe validator.FieldError, messages map[string]string) string {
	if msg, ok := messages[field+"."+fe.Tag()]; ok {
		return msg
	}
	if msg, ok := messages[field]; ok {
		return msg
	}
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return fmt.Sprintf("Must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", fe.Param())
	case "url", "http_url":
		return "Must be a valid http(s) URL"
	case "email":
		return "Must be a valid email address"
	case "unique":
		return "Values must not repeat"
	default:
		return fmt.Sprintf("Failed %q validation", fe.Tag())
	}
}
