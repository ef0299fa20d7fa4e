package authsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Two-factor operations for a signed-in user.

// EnableTwoFactor starts enrollment after re-verifying the password. The
// returned URI carries the new secret; two-factor stays off until VerifyTOTP
// accepts a code generated from it. issuer may be empty.
func (s *Session) EnableTwoFactor(ctx context.Context, password, issuer string) (*TwoFactorSetup, error) {
	var setup TwoFactorSetup
	err := s.doJSON(ctx, http.MethodPost, "/v1/two-factor/enable",
		EnableTwoFactorRequest{Password: password, Issuer: issuer},
		&setup, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &setup, nil
}

// VerifyTOTP confirms enrollment with a code from the authenticator app.
// Enrollment never trusts the device.
func (s *Session) VerifyTOTP(ctx context.Context, code string) error {
	return s.doJSON(ctx, http.MethodPost, "/v1/two-factor/verify-totp",
		VerifyTOTPRequest{Code: code}, nil, http.StatusNoContent)
}

// DisableTwoFactor turns two-factor off after re-verifying the password.
func (s *Session) DisableTwoFactor(ctx context.Context, password string) error {
	return s.doJSON(ctx, http.MethodPost, "/v1/two-factor/disable",
		PasswordRequest{Password: password}, nil, http.StatusNoContent)
}

// RegenerateBackupCodes replaces every backup code after re-verifying the
// password and returns the new set.
func (s *Session) RegenerateBackupCodes(ctx context.Context, password string) ([]string, error) {
	var out BackupCodesResponse
	err := s.doJSON(ctx, http.MethodPost, "/v1/two-factor/generate-backup-codes",
		PasswordRequest{Password: password}, &out, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return out.BackupCodes, nil
}

// ListBackupCodes returns the remaining backup codes in issue order.
func (s *Session) ListBackupCodes(ctx context.Context) ([]string, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/two-factor/recovery-codes", nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(resp, body)
	}

	var env RecoveryCodesEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !env.Status {
		return nil, &APIError{StatusCode: resp.StatusCode, Code: env.Code, Description: env.Message}
	}
	if env.Data == nil {
		return []string{}, nil
	}
	return env.Data, nil
}

// VerifyBackupCode consumes one backup code for the signed-in user.
func (s *Session) VerifyBackupCode(ctx context.Context, code string) error {
	return s.doJSON(ctx, http.MethodPost, "/v1/two-factor/verify-backup-code",
		VerifyBackupCodeRequest{Code: code}, nil, http.StatusNoContent)
}
