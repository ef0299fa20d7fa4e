package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/starterkit/internal/auth/service"
	"github.com/aussiebroadwan/starterkit/pkg/authsdk"
	"github.com/aussiebroadwan/starterkit/pkg/httpx"
	"github.com/aussiebroadwan/starterkit/pkg/slogx"
)

// multipart framing allowance on top of the image itself.
const avatarFormOverhead = 64 << 10

type AvatarHandler struct {
	AvatarService *service.AvatarService
}

// HandleUpload handles POST /v1/upload/avatar
//
//	@Summary		Upload a profile image
//	@Description	Accepts a multipart form with a "file" part of type image/jpeg, image/png, image/gif
//	@Description	or image/webp, at most 800 KiB. Replaces any previous avatar.
//	@Tags			Account
//	@Security		BearerAuth
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file					true	"Image"
//	@Success		200		{object}	authsdk.AvatarResponse	"Public URL of the image"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Missing file, wrong type or too large"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid or missing access token"
//	@Router			/v1/upload/avatar [post].
func (h *AvatarHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, service.MaxAvatarSize+avatarFormOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeServiceError(w, r, service.ErrImageTooLarge)
			return
		}
		slogx.FromContext(r.Context()).Warn("failed to read upload", "err", err)
		httpx.WriteError(w, http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, "missing file")
		return
	}
	defer file.Close()

	url, err := h.AvatarService.Upload(r.Context(), userID, header.Filename, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.AvatarResponse{URL: url})
}

// HandleDelete handles DELETE /v1/upload/avatar
//
//	@Summary		Remove the profile image
//	@Tags			Account
//	@Security		BearerAuth
//	@Success		204	"Removed"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Invalid or missing access token"
//	@Router			/v1/upload/avatar [delete].
func (h *AvatarHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.AvatarService.Delete(r.Context(), userID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
