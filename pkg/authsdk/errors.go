package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/starterkit/pkg/httpx"
)

// ============================================================================
// Error Codes
// ============================================================================

const (
	ErrorCodeInvalidRequest          = "invalid_request"
	ErrorCodeInvalidCredentials      = "invalid_credentials"
	ErrorCodeInvalidToken            = "invalid_token"
	ErrorCodeServerError             = "server_error"
	ErrorCodeNotFound                = "not_found"
	ErrorCodeEmailTaken              = "email_taken"
	ErrorCodeWeakPassword            = "weak_password"
	ErrorCodeTwoFactorRequired       = "two_factor_required"
	ErrorCodeInvalidTOTPCode         = "invalid_totp_code"
	ErrorCodeInvalidBackupCode       = "invalid_backup_code"
	ErrorCodeInvalidChallenge        = "invalid_challenge"
	ErrorCodeTooManyAttempts         = "too_many_attempts"
	ErrorCodeTwoFactorNotEnabled     = "two_factor_not_enabled"
	ErrorCodeTwoFactorAlreadyEnabled = "two_factor_already_enabled"
	ErrorCodeTwoFactorNotEnrolled    = "two_factor_not_enrolled"
	ErrorCodeUnsupportedImageType    = "unsupported_image_type"
	ErrorCodeImageTooLarge           = "image_too_large"
	ErrorCodeRateLimited             = "rate_limit_exceeded"
)

// ============================================================================
// APIError
// ============================================================================

// APIError is an error body returned by the service. It is used both by the
// server (to write responses) and by the client (to report them).
type APIError struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	// Code is the machine readable error code
	Code string `json:"error"`

	// Description is a human-readable description of the error
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes e to an HTTP response writer.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.WriteError(w, e.StatusCode, e.Code, e.Description)
}

// Is matches another *APIError by code, so predefined errors work with
// errors.Is regardless of their description.
func (e *APIError) Is(target error) bool {
	var t *APIError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func NewAPIError(statusCode int, code, description string) *APIError {
	return &APIError{StatusCode: statusCode, Code: code, Description: description}
}

var (
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	// ErrInvalidToken is returned when the access token is missing, invalid, expired or revoked.
	ErrInvalidToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "the access token is missing, invalid, expired or revoked",
	}

	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}

	ErrNotFound = &APIError{
		StatusCode:  http.StatusNotFound,
		Code:        ErrorCodeNotFound,
		Description: "not found",
	}
)

// ErrorCode returns the service error code carried by err, if any.
func ErrorCode(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// ============================================================================
// Two-factor Required
// ============================================================================

// TwoFactorRequiredError is returned by Client.SignIn when the account needs
// a second factor. Complete the sign-in through Challenge.
type TwoFactorRequiredError struct {
	Challenge *Challenge
}

func (e *TwoFactorRequiredError) Error() string {
	return fmt.Sprintf("two-factor authentication required: available methods=%v", e.Challenge.Methods())
}

// ============================================================================
// Error Parsing Helpers
// ============================================================================

// parseErrorResponse turns a non-2xx response into an *APIError. Sign-in
// turns the 409 two_factor_required body into a challenge itself.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	// Envelope endpoints report {status, code, message}.
	var env httpx.Envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Code != "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        env.Code,
			Description: env.Message,
		}
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
