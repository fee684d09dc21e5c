package services

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/yashrajoria/shopswift-api/common/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError turns the first validator failure into a Validation error
// naming the offending field by its JSON path.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperrors.Validation("invalid input: %v", err)
	}
	fe := verrs[0]
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return apperrors.Validation("%s is required", field)
	case "oneof":
		return apperrors.Validation("%s must be one of [%s]", field, fe.Param())
	case "gt":
		return apperrors.Validation("%s must be greater than %s", field, fe.Param())
	case "lte":
		return apperrors.Validation("%s must be at most %s", field, fe.Param())
	case "min":
		return apperrors.Validation("%s must have at least %s entries", field, fe.Param())
	case "max":
		return apperrors.Validation("%s must be at most %s characters", field, fe.Param())
	}
	return apperrors.Validation("%s is invalid", field)
}

func validateStruct(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		return validationError(err)
	}
	return nil
}

func requirePositive(name string, v uint) error {
	if v == 0 {
		return apperrors.Validation("%s is required", name)
	}
	return nil
}
