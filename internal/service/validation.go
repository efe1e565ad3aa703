package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	appErrors "github.com/JGooseK41/NFTServiceApp-sub011/pkg/errors"
	"github.com/JGooseK41/NFTServiceApp-sub011/pkg/tron"
)

// registerTronRules adds the tron_address tag and reports field names as they appear in JSON.
func registerTronRules(v *validator.Validate) {
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("tron_address", func(fl validator.FieldLevel) bool {
		return tron.IsValidAddress(fl.Field().String())
	})
}

// validationError converts validator output into a 400 naming the first offending field.
func validationError(err error, fallback string) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		msg := fmt.Sprintf("%s is invalid", fe.Field())
		switch fe.Tag() {
		case "required":
			msg = fmt.Sprintf("%s is required", fe.Field())
		case "tron_address":
			msg = fmt.Sprintf("%s must be a valid TRON address", fe.Field())
		case "min", "max":
			msg = fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
		}
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, msg)
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fallback)
}

// requireAddress validates a single wallet parameter.
func requireAddress(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, field+" is required")
	}
	normalized, err := tron.NormalizeAddress(value)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, field+" must be a valid TRON address")
	}
	return normalized, nil
}

// requireWallet validates a wallet used only for matching stored rows. Case-folded addresses
// pass through and are compared case-insensitively downstream.
func requireWallet(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, field+" is required")
	}
	normalized, err := tron.NormalizeForMatch(value)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, field+" must be a valid TRON address")
	}
	return normalized, nil
}
