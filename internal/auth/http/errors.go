package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/starterkit/internal/auth/domain"
	"github.com/aussiebroadwan/starterkit/internal/auth/service"
	"github.com/aussiebroadwan/starterkit/pkg/authsdk"
	"github.com/aussiebroadwan/starterkit/pkg/httpx"
	"github.com/aussiebroadwan/starterkit/pkg/slogx"
)

// maxJSONBody bounds every JSON request body.
const maxJSONBody = 16 << 10

// serviceErrors maps service sentinels to their HTTP form. The error code is
// the sentinel's own text.
var serviceErrors = []struct {
	err         error
	status      int
	description string
}{
	{service.ErrInvalidRequest, http.StatusBadRequest, "the request is malformed or missing required fields"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "email or password is incorrect"},
	{service.ErrEmailTaken, http.StatusConflict, "an account with this email already exists"},
	{service.ErrWeakPassword, http.StatusBadRequest, "password must be at least 8 characters"},
	{service.ErrUserNotFound, http.StatusNotFound, "user not found"},
	{service.ErrSessionNotFound, http.StatusNotFound, "session not found"},
	{service.ErrSessionRevoked, http.StatusUnauthorized, "session has been revoked"},
	{service.ErrInvalidTOTPCode, http.StatusBadRequest, "invalid two-factor code"},
	{service.ErrInvalidBackupCode, http.StatusBadRequest, "invalid backup code"},
	{service.ErrInvalidChallenge, http.StatusUnauthorized, "the sign-in challenge is invalid or has expired"},
	{service.ErrTooManyAttempts, http.StatusTooManyRequests, "too many failed attempts, sign in again"},
	{service.ErrTwoFactorNotEnabled, http.StatusBadRequest, "two-factor authentication is not enabled"},
	{service.ErrTwoFactorAlreadyEnabled, http.StatusConflict, "two-factor authentication is already enabled"},
	{service.ErrTwoFactorNotEnrolled, http.StatusBadRequest, "two-factor enrollment has not been started"},
	{service.ErrUnsupportedImageType, http.StatusBadRequest, "image must be jpeg, png, gif or webp"},
	{service.ErrImageTooLarge, http.StatusBadRequest, "image must be at most 800 KiB"},
}

// writeServiceError writes err as an error body. Unknown errors are logged
// and reported as a generic server error.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var required *service.ChallengeRequiredError
	if errors.As(err, &required) {
		writeChallengeRequired(w, required.Challenge)
		return
	}

	for _, e := range serviceErrors {
		if errors.Is(err, e.err) {
			httpx.WriteError(w, e.status, e.err.Error(), e.description)
			return
		}
	}

	slogx.FromContext(r.Context()).Error("request failed", "err", err)
	authsdk.ErrServerError.WriteError(w)
}

// writeChallengeRequired answers a correct password on a two-factor account.
func writeChallengeRequired(w http.ResponseWriter, c domain.ChallengeRequired) {
	httpx.WriteJSON(w, http.StatusConflict, authsdk.TwoFactorRequiredResponse{
		Error:            authsdk.ErrorCodeTwoFactorRequired,
		ErrorDescription: "a second factor is required to complete sign-in",
		ChallengeToken:   c.ChallengeToken,
		Methods:          c.Methods,
		ExpiresAt:        c.ExpiresAt,
	})
}

// decodeBody decodes a JSON request body and writes the 400 itself on
// failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := httpx.DecodeJSON(w, r, maxJSONBody, v); err != nil {
		slogx.FromContext(r.Context()).Warn("failed to parse request", "err", err)
		httpx.WriteError(w, http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, "invalid JSON body")
		return false
	}
	return true
}

// requireUser returns the authenticated user. The authn middleware has
// already run; a missing identity is a wiring bug and answered as 401.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := httpx.UserID(r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return "", false
	}
	return userID, true
}

func clientMeta(r *http.Request) domain.ClientMeta {
	return domain.ClientMeta{
		IPAddress: httpx.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

func tokenResponse(t domain.SessionToken) authsdk.TokenResponse {
	return authsdk.TokenResponse{
		AccessToken: t.AccessToken,
		TokenType:   t.TokenType,
		ExpiresIn:   t.ExpiresIn,
		SessionID:   t.SessionID,
		DeviceToken: t.DeviceToken,
	}
}
