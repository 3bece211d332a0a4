// Package validation checks request shapes with struct tags and reports failures as
// validation errors keyed by JSON field name.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/apperror"
	"github.com/shopspring/decimal"
)

var phonePattern = regexp.MustCompile(`^[0-9+\-\s()]{7,20}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("decimal2", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && !d.IsNegative() && d.Exponent() >= -2
	})
	return v
}

// Struct validates v and returns nil or an *apperror.Error of kind validation.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.Validation(err.Error(), nil)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describe(fe)
	}
	return apperror.Validation("invalid input", fields)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gt", "gte":
		return fmt.Sprintf("must be at least %s", minBound(fe))
	case "lt", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email address"
	case "phone":
		return "must be 7 to 20 digits, spaces, +, - or parentheses"
	case "uuid":
		return "must be a valid id"
	case "datetime":
		return "must be an RFC3339 timestamp"
	case "oneof":
		return "must be one of " + fe.Param()
	case "decimal2":
		return "must be a non-negative amount with at most two decimals"
	default:
		return "is invalid"
	}
}

func minBound(fe validator.FieldError) string {
	if fe.Tag() == "gt" {
		return "more than " + fe.Param()
	}
	return fe.Param()
}

// Field builds a single-field validation error.
func Field(field, problem string) error {
	return apperror.Validation("invalid input", map[string]string{field: problem})
}
