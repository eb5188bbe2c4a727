package vault

import (
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/tim-projects/omniauth/otp"
)

// ErrValidation is matched by every ValidationError.
var ErrValidation = errors.New("vault: invalid account")

// ValidationError maps json field names to the rule they failed.
type ValidationError map[string]string

func (ve ValidationError) Error() string {
	var fields []string = make([]string, 0, len(ve))
	for field := range ve {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var parts []string = make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+ve[field])
	}

	return ErrValidation.Error() + ": " + strings.Join(parts, ", ")
}

func (ve ValidationError) Unwrap() error {
	return ErrValidation
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func accountValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
			if name == "-" || name == "" {
				return field.Name
			}
			return name
		})

		_ = validate.RegisterValidation("base32secret", func(fl validator.FieldLevel) bool {
			_, err := otp.DecodeSecret(fl.Field().String())
			return err == nil
		})
	})

	return validate
}

// Validate checks an account: issuer and account are set, the secret
// decodes, the algorithm is supported, and digits and period are positive.
func Validate(account Account) error {
	err := accountValidator().Struct(account)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	var ve ValidationError = make(ValidationError, len(fieldErrs))
	for _, fe := range fieldErrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		ve[fe.Field()] = rule
	}

	return ve
}
