package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/starterkit/internal/auth/service"
	"github.com/aussiebroadwan/starterkit/pkg/authsdk"
	"github.com/aussiebroadwan/starterkit/pkg/httpx"
	"github.com/aussiebroadwan/starterkit/pkg/slogx"
)

// TwoFactorHandler serves enrollment, sign-in challenges and backup codes.
type TwoFactorHandler struct {
	TwoFactorService *service.TwoFactorService
}

// HandleEnable handles POST /v1/two-factor/enable
//
//	@Summary		Start two-factor enrollment
//	@Description	Re-verifies the password and issues a fresh TOTP secret and backup codes. Two-factor
//	@Description	stays off until a code from the secret is confirmed via /v1/two-factor/verify-totp.
//	@Tags			TwoFactor
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.EnableTwoFactorRequest	true	"Password and optional issuer"
//	@Success		200		{object}	authsdk.TwoFactorSetup			"otpauth URI and backup codes"
//	@Failure		401		{object}	authsdk.ErrorResponse			"Wrong password or missing access token"
//	@Failure		409		{object}	authsdk.ErrorResponse			"Already enabled"
//	@Router			/v1/two-factor/enable [post].
func (h *TwoFactorHandler) HandleEnable(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req authsdk.EnableTwoFactorRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.TwoFactorService.Enable(r.Context(), userID, req.Password, req.Issuer)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.TwoFactorSetup{
		TOTPURI:     res.TOTPURI,
		BackupCodes: res.BackupCodes,
	})
}

// HandleVerifyTOTP handles POST /v1/two-factor/verify-totp
//
//	@Summary		Verify an authenticator code
//	@Description	With challenge_token: completes a pending sign-in and returns a session. trust_device
//	@Description	adds a device token that skips the challenge on later sign-ins.
//	@Description	Without challenge_token: confirms enrollment for the signed-in user and turns two-factor on.
//	@Tags			TwoFactor
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.VerifyTOTPRequest	true	"Code"
//	@Success		200		{object}	authsdk.TokenResponse		"Challenge passed"
//	@Success		204		"Enrollment confirmed"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Wrong code"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid challenge or missing access token"
//	@Failure		429		{object}	authsdk.ErrorResponse	"Too many attempts"
//	@Router			/v1/two-factor/verify-totp [post].
func (h *TwoFactorHandler) HandleVerifyTOTP(w http.ResponseWriter, r *http.Request) {
	var req authsdk.VerifyTOTPRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.ChallengeToken != "" {
		tok, err := h.TwoFactorService.VerifyChallengeTOTP(r.Context(), req.ChallengeToken, req.Code, req.TrustDevice, clientMeta(r))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, tokenResponse(tok))
		return
	}

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.TwoFactorService.VerifyEnrollment(r.Context(), userID, req.Code); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleVerifyBackupCode handles POST /v1/two-factor/verify-backup-code
//
//	@Summary		Verify a backup code
//	@Description	With challenge_token: completes a pending sign-in and consumes the code. A backup code
//	@Description	never trusts the device; trust_device is ignored. disable_session signs out every other
//	@Description	session of the account.
//	@Description	Without challenge_token: consumes a code of the signed-in user.
//	@Tags			TwoFactor
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.VerifyBackupCodeRequest	true	"Code"
//	@Success		200		{object}	authsdk.TokenResponse			"Challenge passed"
//	@Success		204		"Code accepted"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Wrong or used code"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid challenge or missing access token"
//	@Failure		429		{object}	authsdk.ErrorResponse	"Too many attempts"
//	@Router			/v1/two-factor/verify-backup-code [post].
func (h *TwoFactorHandler) HandleVerifyBackupCode(w http.ResponseWriter, r *http.Request) {
	var req authsdk.VerifyBackupCodeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.ChallengeToken != "" {
		tok, err := h.TwoFactorService.VerifyChallengeBackupCode(r.Context(), req.ChallengeToken, req.Code, req.DisableSession, clientMeta(r))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, tokenResponse(tok))
		return
	}

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.TwoFactorService.VerifyBackupCode(r.Context(), userID, req.Code); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDisable handles POST /v1/two-factor/disable
//
//	@Summary		Turn two-factor off
//	@Description	Removes the secret, backup codes and trusted devices. Requires the password.
//	@Tags			TwoFactor
//	@Security		BearerAuth
//	@Accept			json
//	@Param			request	body	authsdk.PasswordRequest	true	"Current password"
//	@Success		204		"Disabled"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Not enabled"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Wrong password or missing access token"
//	@Router			/v1/two-factor/disable [post].
func (h *TwoFactorHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req authsdk.PasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.TwoFactorService.Disable(r.Context(), userID, req.Password); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRegenerate handles POST /v1/two-factor/generate-backup-codes
//
//	@Summary		Regenerate backup codes
//	@Description	Replaces every backup code. The previous set stops working immediately.
//	@Tags			TwoFactor
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.PasswordRequest		true	"Current password"
//	@Success		200		{object}	authsdk.BackupCodesResponse	"The new codes"
//	@Failure		400		{object}	authsdk.ErrorResponse		"Not enabled"
//	@Failure		401		{object}	authsdk.ErrorResponse		"Wrong password or missing access token"
//	@Router			/v1/two-factor/generate-backup-codes [post].
func (h *TwoFactorHandler) HandleRegenerate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req authsdk.PasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	codes, err := h.TwoFactorService.RegenerateBackupCodes(r.Context(), userID, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.BackupCodesResponse{BackupCodes: codes})
}

// HandleRecoveryCodes handles GET /v1/two-factor/recovery-codes
//
// Unlike the other endpoints this one answers in the envelope format, including
// for a missing or invalid token.
//
//	@Summary		List unused backup codes
//	@Tags			TwoFactor
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.RecoveryCodesEnvelope	"Unused codes"
//	@Failure		400	{object}	authsdk.RecoveryCodesEnvelope	"Two-factor not enabled"
//	@Failure		401	{object}	authsdk.RecoveryCodesEnvelope	"Missing or invalid access token"
//	@Failure		500	{object}	authsdk.RecoveryCodesEnvelope	"Server error"
//	@Router			/v1/two-factor/recovery-codes [get].
func (h *TwoFactorHandler) HandleRecoveryCodes(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserID(r.Context())
	if !ok {
		httpx.WriteEnvelopeUnauthorized(w)
		return
	}

	codes, err := h.TwoFactorService.ListBackupCodes(r.Context(), userID)
	switch {
	case err == nil:
		if codes == nil {
			codes = []string{}
		}
		httpx.WriteEnvelopeOK(w, "Backup codes retrieved successfully", codes)
	case errors.Is(err, service.ErrTwoFactorNotEnabled), errors.Is(err, service.ErrUserNotFound):
		httpx.WriteEnvelopeError(w, http.StatusBadRequest, httpx.CodeBadRequest, "Two-factor authentication is not enabled")
	default:
		slogx.FromContext(r.Context()).Error("failed to list backup codes", "err", err)
		httpx.WriteEnvelopeError(w, http.StatusInternalServerError, httpx.CodeInternalError, "Failed to retrieve backup codes")
	}
}
