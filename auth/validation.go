package auth

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/jrsteele09/go-underwriter/internal/errors"
	"github.com/jrsteele09/go-underwriter/oauthmodel"
)

// Validator checks credentials before they are sent to the backend.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// ValidateLogin validates login credentials
func (v *Validator) ValidateLogin(req oauthmodel.LoginRequest) error {
	return v.check(req)
}

// ValidateRegistration validates the registration form, including the confirmation password.
func (v *Validator) ValidateRegistration(req oauthmodel.RegisterRequest, confirmPassword string) error {
	if req.Password != confirmPassword {
		return ErrPasswordsDontMatch
	}
	return v.check(req)
}

func (v *Validator) check(req any) error {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !apperrors.As(err, &fieldErrs) {
		return err
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			problems = append(problems, fmt.Sprintf("%s is required", strings.ToLower(fe.Field())))
		case "email":
			problems = append(problems, "invalid email format")
		default:
			problems = append(problems, fmt.Sprintf("%s is invalid", strings.ToLower(fe.Field())))
		}
	}
	return fmt.Errorf("%s", strings.Join(problems, ", "))
}
