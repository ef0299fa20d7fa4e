package service

import (
	"errors"

	"github.com/aussiebroadwan/starterkit/internal/auth/domain"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrEmailTaken         = errors.New("email_taken")
	ErrWeakPassword       = errors.New("weak_password")
	ErrUserNotFound       = errors.New("user_not_found")

	ErrSessionNotFound = errors.New("session_not_found")
	ErrSessionRevoked  = errors.New("session_revoked")

	ErrInvalidTOTPCode         = errors.New("invalid_totp_code")
	ErrInvalidBackupCode       = errors.New("invalid_backup_code")
	ErrInvalidChallenge        = errors.New("invalid_challenge")
	ErrTooManyAttempts         = errors.New("too_many_attempts")
	ErrTwoFactorNotEnabled     = errors.New("two_factor_not_enabled")
	ErrTwoFactorAlreadyEnabled = errors.New("two_factor_already_enabled")
	ErrTwoFactorNotEnrolled    = errors.New("two_factor_not_enrolled")

	ErrUnsupportedImageType = errors.New("unsupported_image_type")
	ErrImageTooLarge        = errors.New("image_too_large")
)

// ChallengeRequiredError is returned by SignIn when the password was correct
// but a second factor is still needed.
type ChallengeRequiredError struct {
	Challenge domain.ChallengeRequired
}

func (e *ChallengeRequiredError) Error() string { return "two_factor_required" }
