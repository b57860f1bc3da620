package validator

import (
	"fmt"
	"html"
	"reflect"
	"strings"
	"sync"

	"anoa.com/mediagallery/pkg/apperror"
	"anoa.com/mediagallery/pkg/slice"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

var (
	validate  *validator.Validate
	once      sync.Once
	sanitizer = bluemonday.StrictPolicy()
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report fields by the name the client sent, not the Go field name.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Struct validates s against its `validate` tags. It returns nil or an
// *apperror.ValidationError listing every failing field.
func Struct(s any) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("%w: %v", apperror.ErrInvalidInput, err)
	}

	fields := make([]apperror.FieldError, 0, len(validationErrors))
	for _, fe := range validationErrors {
		fields = append(fields, apperror.FieldError{
			Field:   fe.Field(),
			Message: getFieldErrorMessage(fe),
		})
	}
	return apperror.NewValidation(fields...)
}

// FormatValidationError flattens a validation error into one line.
func FormatValidationError(err error) string {
	if ve, ok := apperror.AsValidation(err); ok {
		var messages []string
		for _, f := range ve.Fields {
			messages = append(messages, f.Field+" "+f.Message)
		}
		return strings.Join(messages, "; ")
	}
	return err.Error()
}

// Sanitize strips every HTML tag and trims the surrounding whitespace.
func Sanitize(s string) string {
	return strings.TrimSpace(html.UnescapeString(sanitizer.Sanitize(s)))
}

func getFieldErrorMessage(fe validator.FieldError) string {
	unit := "item(s)"
	if fe.Kind() == reflect.String {
		unit = "character(s)"
	}

	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must contain at least %s %s", fe.Param(), unit)
	case "max":
		return fmt.Sprintf("must contain at most %s %s", fe.Param(), unit)
	case "uuid", "uuid4", "uuid7":
		return "must be a valid id"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "startswith":
		return fmt.Sprintf("must start with %s", fe.Param())
	default:
		return "is invalid"
	}
}

// ParseID parses a client-supplied id, reporting failures against field.
func ParseID(field, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, apperror.NewValidation(apperror.FieldError{Field: field, Message: "must be a valid id"})
	}
	return id, nil
}

// ParseIDs parses a list of ids, dropping repeats. The first occurrence keeps its position.
func ParseIDs(field string, ss []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(ss))
	for i, s := range ss {
		id, err := ParseID(fmt.Sprintf("%s[%d]", field, i), s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return slice.Unique(ids), nil
}
