package core

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"groundwatch/internal/types"
)

// Validator wraps go-playground/validator and translates its failures into
// the service's validation error codes.
type Validator struct {
	v *validator.Validate
}

// NewValidator creates a Validator.
func NewValidator() *Validator {
	return &Validator{v: validator.New()}
}

// Struct validates a request struct. The first failing field determines the
// error code so clients get a specific, actionable error.
func (val *Validator) Struct(s any) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}

	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return types.NewAppError(types.ErrCodeValidationMissingField,
			"request validation failed", err)
	}

	fe := errs[0]
	code := types.ErrCodeValidationMissingField
	switch fe.Field() {
	case "Lat":
		code = types.ErrCodeValidationInvalidLat
	case "Lon":
		code = types.ErrCodeValidationInvalidLon
	case "AsOf":
		code = types.ErrCodeValidationInvalidDate
	case "Points":
		if fe.Tag() == "max" {
			code = types.ErrCodeValidationBatchSize
		}
	}
	return types.NewAppError(code,
		fmt.Sprintf("field %s failed validation rule %q", fe.Field(), fe.Tag()), err)
}
