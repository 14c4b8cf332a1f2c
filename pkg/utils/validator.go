package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "business-api/pkg/errors"
)

type CustomValidator struct {
	validator *validator.Validate
}

func NewValidator(v *validator.Validate) *CustomValidator {
	return &CustomValidator{validator: v}
}

// Validate возвращает первую ошибку валидации в виде apperrors.ValidationError.
func (cv *CustomValidator) Validate(i interface{}) error {
	err := cv.validator.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		msg := fmt.Sprintf("не прошло проверку %q", fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("не прошло проверку %q (%s)", fe.Tag(), fe.Param())
		}
		return apperrors.NewValidationError(strings.ToLower(fe.Field()), "%s", msg)
	}
	return apperrors.NewValidationError("", "%s", err.Error())
}
