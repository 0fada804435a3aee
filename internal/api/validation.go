package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"bizadmin/internal/backup"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator returns the shared validator. Field errors carry json names
// and the artifact_name tag checks backup file names.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return field.Name
			}
			return name
		})

		_ = validate.RegisterValidation("artifact_name", func(fl validator.FieldLevel) bool {
			return backup.IsArtifactName(fl.Field().String())
		})
	})
	return validate
}

var errorMessageTemplates = map[string]string{
	"required":      "%s is required",
	"required_if":   "%s is required",
	"artifact_name": "%s is not a valid backup file name",
}

var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"min":   "%s must be at least %s",
	"max":   "%s must be at most %s",
}

func translateError(fe validator.FieldError) string {
	if template, ok := errorMessageTemplates[fe.Tag()]; ok {
		return fmt.Sprintf(template, fe.Field())
	}
	if template, ok := errorMessageWithParam[fe.Tag()]; ok {
		return fmt.Sprintf(template, fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}

// validationMessage flattens a validator error into one message
func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}

	messages := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		messages[i] = translateError(fe)
	}
	return strings.Join(messages, "; ")
}

// validateRequest validates a request struct, returning a user facing message
func validateRequest(v interface{}) error {
	if err := getValidator().Struct(v); err != nil {
		return errors.New(validationMessage(err))
	}
	return nil
}

// validateFileName checks a backup file name passed outside a request body
func validateFileName(name string) error {
	if err := getValidator().Var(name, "required,artifact_name"); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && fieldErrs[0].Tag() == "required" {
			return errors.New("fileName is required")
		}
		return errors.New("fileName is not a valid backup file name")
	}
	return nil
}
