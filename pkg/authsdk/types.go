package authsdk

import "time"

// ============================================================================
// Error Types
// ============================================================================

// ErrorResponse is the error body returned by every endpoint except the
// recovery-code envelope.
type ErrorResponse struct {
	// Error is the machine readable code (e.g., "invalid_credentials")
	Error string `json:"error"`

	// ErrorDescription is a human-readable description of the error
	ErrorDescription string `json:"error_description,omitempty"`
}

// TwoFactorRequiredResponse is returned by sign-in with HTTP 409 when the
// password was correct but a second factor is still needed.
type TwoFactorRequiredResponse struct {
	Error            string    `json:"error"`
	ErrorDescription string    `json:"error_description,omitempty"`
	ChallengeToken   string    `json:"challenge_token"`
	Methods          []string  `json:"methods"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// ============================================================================
// Sign-in Types
// ============================================================================

type SignUpRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`

	// DeviceToken is the token handed out when a device was trusted. It
	// skips the second factor until it expires.
	DeviceToken string `json:"device_token,omitempty"`
}

// TokenResponse is returned whenever a sign-in completes.
type TokenResponse struct {
	// AccessToken is the EdDSA signed JWT used to authenticate API requests
	AccessToken string `json:"access_token"`

	// TokenType is always "Bearer"
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int64 `json:"expires_in"`

	// SessionID identifies the server-side session the token is bound to
	SessionID string `json:"session_id"`

	// DeviceToken is only present when the device was trusted
	DeviceToken string `json:"device_token,omitempty"`
}

// ============================================================================
// Two-factor Types
// ============================================================================

type EnableTwoFactorRequest struct {
	Password string `json:"password"`

	// Issuer overrides the label shown in authenticator apps.
	Issuer string `json:"issuer,omitempty"`
}

// TwoFactorSetup is returned when enrollment starts. Two-factor stays off
// until a code generated from the URI is verified.
type TwoFactorSetup struct {
	TOTPURI     string   `json:"totp_uri"`
	BackupCodes []string `json:"backup_codes"`
}

// VerifyTOTPRequest confirms enrollment (bearer token) or completes a
// sign-in (challenge token).
type VerifyTOTPRequest struct {
	Code           string `json:"code"`
	TrustDevice    bool   `json:"trust_device,omitempty"`
	ChallengeToken string `json:"challenge_token,omitempty"`
}

// VerifyBackupCodeRequest consumes a backup code. DisableSession signs out
// every other session once the code is accepted. TrustDevice is accepted
// for compatibility and ignored: a backup code never trusts the device.
type VerifyBackupCodeRequest struct {
	Code           string `json:"code"`
	TrustDevice    bool   `json:"trust_device,omitempty"`
	DisableSession bool   `json:"disable_session,omitempty"`
	ChallengeToken string `json:"challenge_token,omitempty"`
}

// PasswordRequest carries the password re-verification required by
// destructive operations.
type PasswordRequest struct {
	Password string `json:"password"`
}

type BackupCodesResponse struct {
	BackupCodes []string `json:"backup_codes"`
}

// RecoveryCodesEnvelope is the body of GET /v1/two-factor/recovery-codes.
type RecoveryCodesEnvelope struct {
	Status  bool     `json:"status"`
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Data    []string `json:"data"`
	Errors  any      `json:"errors"`
}

// ============================================================================
// Account Types
// ============================================================================

type Account struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	Image            *string   `json:"image"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	HasPassword      bool      `json:"has_password"`
	CreatedAt        time.Time `json:"created_at"`
}

type AvatarResponse struct {
	URL string `json:"url"`
}

// SessionInfo describes one signed-in device.
type SessionInfo struct {
	ID        string    `json:"id"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`

	// Current marks the session the request was made with
	Current bool `json:"current"`
}

type SessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	Database   string `json:"database"`
	Signer     string `json:"signer"`
	Challenges string `json:"challenges,omitempty"`
}
