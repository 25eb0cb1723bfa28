package validator

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param"`
}

// Message renders a human-readable description of the failure, suitable for
// the response envelope's details list.
func (v ValidationError) Message() string {
	field := strings.ToLower(strings.ReplaceAll(v.Field, "_", " "))
	if field == "" {
		field = "field"
	}

	switch v.Tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, v.Param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, v.Param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, v.Param)
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, v.Param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(v.Param, " ", ", "))
	default:
		if v.Param != "" {
			return fmt.Sprintf("%s failed validation: %s=%s", field, v.Tag, v.Param)
		}
		return fmt.Sprintf("%s failed validation: %s", field, v.Tag)
	}
}

// ValidationErrors collects multiple validation failures.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}

	parts := make([]string, len(v))
	for i, err := range v {
		parts[i] = err.Message()
	}
	return strings.Join(parts, "; ")
}

// Messages returns every failure as a human-readable string, one per violated
// constraint.
func (v ValidationErrors) Messages() []string {
	out := make([]string, 0, len(v))
	for _, err := range v {
		out = append(out, err.Message())
	}
	return out
}

// ValidateStruct validates a struct using registered rules.
func ValidateStruct(s interface{}) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	if ve, ok := err.(validator.ValidationErrors); ok {
		failures := make(ValidationErrors, 0, len(ve))
		for _, fe := range ve {
			failures = append(failures, ValidationError{
				Field: fe.Field(),
				Tag:   fe.Tag(),
				Param: fe.Param(),
			})
		}
		return failures
	}

	return err
}

// RegisterValidation exposes underlying validator custom rules.
func RegisterValidation(tag string, fn validator.Func) error {
	return getValidator().RegisterValidation(tag, fn)
}

func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := fld.Tag.Get("json")
			if name == "" {
				return fld.Name
			}

			comma := strings.Index(name, ",")
			if comma != -1 {
				name = name[:comma]
			}

			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}
