package auth

import (
	"errors"

	apperrors "github.com/jrsteele09/go-underwriter/internal/errors"
)

var (
	ErrInvalidCredentials  = apperrors.ErrInvalidCredentials
	ErrRegistrationFailed  = apperrors.ErrRegistrationFailed
	ErrPasswordsDontMatch  = errors.New("passwords do not match")
	ErrMissingTokenInReply = errors.New("login response carried no token")
)
