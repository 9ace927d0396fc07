package utils

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	apperrors "lending-system/pkg/errors"
)

type CustomValidator struct {
	validator *validator.Validate
}

func NewValidator(v *validator.Validate) *CustomValidator {
	return &CustomValidator{validator: v}
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return apperrors.NewHttpError(http.StatusBadRequest, "request validation failed", err)
	}
	return nil
}

func StringPtr(s string) *string { return &s }
