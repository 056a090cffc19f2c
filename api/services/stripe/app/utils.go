package app

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names so messages match what the client sent.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest returns an ErrInvalidRequest naming the first failing field.
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Tag() == "required" {
			return newError(ErrInvalidRequest, fmt.Sprintf("%s is required", fe.Field()), err)
		}
		return newError(ErrInvalidRequest, fmt.Sprintf("%s is invalid", fe.Field()), err)
	}
	return newError(ErrInvalidRequest, err.Error(), err)
}

// MinorToMajor converts an amount in minor currency units (cents) to major units.
func MinorToMajor(amount int64) float64 {
	return float64(amount) / 100
}

func joinURL(base, path string) string {
	return strings.TrimSuffix(base, "/") + path
}
