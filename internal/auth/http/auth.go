package http

import (
	"net/http"

	"github.com/aussiebroadwan/starterkit/internal/auth/service"
	"github.com/aussiebroadwan/starterkit/pkg/authsdk"
	"github.com/aussiebroadwan/starterkit/pkg/httpx"
)

// AuthHandler handles sign-up, sign-in and sign-out.
type AuthHandler struct {
	UserService    *service.UserService
	SessionService *service.SessionService
}

// HandleSignUp handles POST /v1/auth/sign-up
//
//	@Summary		Create an account
//	@Description	Creates a password account and signs it in.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.SignUpRequest	true	"Account details"
//	@Success		201		{object}	authsdk.TokenResponse	"Session for the new account"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Invalid request or weak password"
//	@Failure		409		{object}	authsdk.ErrorResponse	"Email already taken"
//	@Router			/v1/auth/sign-up [post].
func (h *AuthHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var req authsdk.SignUpRequest
	if !decodeBody(w, r, &req) {
		return
	}

	tok, err := h.UserService.SignUp(r.Context(), req.Email, req.Name, req.Password, clientMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, tokenResponse(tok))
}

// HandleSignIn handles POST /v1/auth/sign-in
//
//	@Summary		Sign in with email and password
//	@Description	Returns a session, or 409 with a challenge token when the account has two-factor enabled
//	@Description	and the device is not trusted. Complete the challenge through /v1/two-factor/verify-totp
//	@Description	or /v1/two-factor/verify-backup-code.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.SignInRequest				true	"Credentials"
//	@Success		200		{object}	authsdk.TokenResponse				"Signed in"
//	@Failure		400		{object}	authsdk.ErrorResponse				"Invalid request"
//	@Failure		401		{object}	authsdk.ErrorResponse				"Invalid credentials"
//	@Failure		409		{object}	authsdk.TwoFactorRequiredResponse	"Second factor required"
//	@Failure		429		{object}	authsdk.ErrorResponse				"Rate limited"
//	@Router			/v1/auth/sign-in [post].
func (h *AuthHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	var req authsdk.SignInRequest
	if !decodeBody(w, r, &req) {
		return
	}

	tok, err := h.UserService.SignIn(r.Context(), req.Email, req.Password, req.DeviceToken, clientMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse(tok))
}

// HandleSignOut handles POST /v1/auth/sign-out
//
//	@Summary		Sign out
//	@Description	Revokes the session the access token belongs to.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Success		204	"Signed out"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Invalid or missing access token"
//	@Router			/v1/auth/sign-out [post].
func (h *AuthHandler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	sid, _ := httpx.SessionID(r.Context())

	if err := h.SessionService.SignOut(r.Context(), userID, sid); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
