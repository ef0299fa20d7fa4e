package http

import (
	"net/http"

	"github.com/aussiebroadwan/starterkit/internal/auth/service"
	"github.com/aussiebroadwan/starterkit/pkg/authsdk"
	"github.com/aussiebroadwan/starterkit/pkg/httpx"
)

type SessionsHandler struct {
	SessionService *service.SessionService
}

// HandleList handles GET /v1/sessions
//
//	@Summary		List active sessions
//	@Tags			Sessions
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.SessionsResponse	"Sessions, newest first"
//	@Failure		401	{object}	authsdk.ErrorResponse		"Invalid or missing access token"
//	@Router			/v1/sessions [get].
func (h *SessionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	sid, _ := httpx.SessionID(r.Context())

	views, err := h.SessionService.List(r.Context(), userID, sid)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := authsdk.SessionsResponse{Sessions: make([]authsdk.SessionInfo, 0, len(views))}
	for _, v := range views {
		out.Sessions = append(out.Sessions, authsdk.SessionInfo{
			ID:        v.ID,
			IPAddress: v.IPAddress,
			UserAgent: v.UserAgent,
			CreatedAt: v.CreatedAt,
			ExpiresAt: v.ExpiresAt,
			Current:   v.Current,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleRevoke handles DELETE /v1/sessions/{id}
//
//	@Summary		Revoke a session
//	@Tags			Sessions
//	@Security		BearerAuth
//	@Param			id	path	string	true	"Session ID"
//	@Success		204	"Revoked"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Invalid or missing access token"
//	@Failure		404	{object}	authsdk.ErrorResponse	"Unknown session"
//	@Router			/v1/sessions/{id} [delete].
func (h *SessionsHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.SessionService.Revoke(r.Context(), userID, r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRevokeOthers handles POST /v1/sessions/revoke-others
//
//	@Summary		Revoke every other session
//	@Tags			Sessions
//	@Security		BearerAuth
//	@Success		204	"Revoked"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Invalid or missing access token"
//	@Router			/v1/sessions/revoke-others [post].
func (h *SessionsHandler) HandleRevokeOthers(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	sid, _ := httpx.SessionID(r.Context())

	if _, err := h.SessionService.RevokeOthers(r.Context(), userID, sid); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
