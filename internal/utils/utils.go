package utils

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

// FieldError is one failed binding rule as returned to API clients.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func ValidationErr(err validator.ValidationErrors) []FieldError {
	return lo.Map(err, func(fe validator.FieldError, _ int) FieldError {
		return FieldError{Field: fe.Field(), Tag: fe.ActualTag(), Message: GetErrorMessage(fe)}
	})
}

func GetErrorMessage(fe validator.FieldError) string {
	switch fe.ActualTag() {
	case "required":
		return "This field is required."
	case "min":
		if fe.Kind().String() == "slice" {
			return fmt.Sprintf("Needs at least %s item(s).", fe.Param())
		}
		return fmt.Sprintf("Must be at least %s.", fe.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s.", fe.Param())
	default:
		return "Unknown validation error."
	}
}
