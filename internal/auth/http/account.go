package http

import (
	"net/http"

	"github.com/aussiebroadwan/starterkit/internal/auth/service"
	"github.com/aussiebroadwan/starterkit/pkg/authsdk"
	"github.com/aussiebroadwan/starterkit/pkg/httpx"
)

type AccountHandler struct {
	UserService *service.UserService
}

// HandleGet handles GET /v1/account
//
//	@Summary		Get the signed-in account
//	@Tags			Account
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.Account			"Account profile"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Invalid or missing access token"
//	@Router			/v1/account [get].
func (h *AccountHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	u, err := h.UserService.GetUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	p := u.Profile()
	httpx.WriteJSON(w, http.StatusOK, authsdk.Account{
		ID:               p.ID,
		Email:            p.Email,
		Name:             p.Name,
		Image:            p.Image,
		TwoFactorEnabled: p.TwoFactorEnabled,
		HasPassword:      p.HasPassword,
		CreatedAt:        p.CreatedAt,
	})
}

// HandleDelete handles DELETE /v1/account
//
//	@Summary		Delete the signed-in account
//	@Description	Permanently removes the account and everything it owns. Requires the password.
//	@Tags			Account
//	@Security		BearerAuth
//	@Accept			json
//	@Param			request	body	authsdk.PasswordRequest	true	"Current password"
//	@Success		204		"Deleted"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Invalid request"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Wrong password or missing access token"
//	@Router			/v1/account [delete].
func (h *AccountHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req authsdk.PasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.UserService.DeleteAccount(r.Context(), userID, req.Password); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
