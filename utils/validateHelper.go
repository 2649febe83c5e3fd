package utils

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator with the Optional* types registered,
// so `validate:"required"` fails on an unset optional value.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			o := field.Interface().(OptionalString)
			if !o.Set {
				return nil
			}
			return o.Value
		}, OptionalString{})
		v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			o := field.Interface().(OptionalDecimal)
			if !o.Set {
				return nil
			}
			return o.Value.InexactFloat64()
		}, OptionalDecimal{})
		v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			o := field.Interface().(OptionalInt)
			if !o.Set {
				return nil
			}
			return o.Value
		}, OptionalInt{})
		v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			o := field.Interface().(OptionalDate)
			if !o.Set {
				return nil
			}
			return o.Value
		}, OptionalDate{})
		validate = v
	})
	return validate
}

func ProcessValidationErrors(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return map[string]string{"request": err.Error()}
	}
	errorResponse := make(map[string]string)
	for _, ve := range validationErrors {
		field := ve.Namespace()
		if idx := strings.Index(field, "."); idx >= 0 {
			field = field[idx+1:]
		}
		errorResponse[field] = ve.Tag()
	}
	return errorResponse
}

// ValidateStruct runs the validator and converts failures into a ValidationError.
func ValidateStruct(message string, s any) error {
	if err := Validator().Struct(s); err != nil {
		return NewValidationError(message, ProcessValidationErrors(err))
	}
	return nil
}
