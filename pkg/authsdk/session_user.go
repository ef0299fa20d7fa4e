package authsdk

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
)

// User operations - account, avatar and session management

// ============================================================================
// Account
// ============================================================================

// Account returns the signed-in user's profile.
func (s *Session) Account(ctx context.Context) (*Account, error) {
	var acct Account
	if err := s.doJSON(ctx, http.MethodGet, "/v1/account", nil, &acct, http.StatusOK); err != nil {
		return nil, err
	}
	return &acct, nil
}

// DeleteAccount permanently removes the account after re-verifying the
// password. The session is unusable afterwards.
func (s *Session) DeleteAccount(ctx context.Context, password string) error {
	err := s.doJSON(ctx, http.MethodDelete, "/v1/account",
		PasswordRequest{Password: password}, nil, http.StatusNoContent)
	if err == nil {
		s.forget()
	}
	return err
}

// ============================================================================
// Avatar
// ============================================================================

// UploadAvatar uploads an image as the user's avatar and returns its public
// URL. The server accepts jpeg, png, gif and webp up to 800 KiB.
func (s *Session) UploadAvatar(ctx context.Context, filename, contentType string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, path.Base(filename)))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("failed to read avatar: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/upload/avatar", &buf, map[string]string{
		"Content-Type": mw.FormDataContentType(),
	})
	if err != nil {
		return "", err
	}

	var out AvatarResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return "", err
	}
	return out.URL, nil
}

// DeleteAvatar removes the user's avatar.
func (s *Session) DeleteAvatar(ctx context.Context) error {
	return s.doJSON(ctx, http.MethodDelete, "/v1/upload/avatar", nil, nil, http.StatusNoContent)
}

// ============================================================================
// Sessions
// ============================================================================

// Sessions lists the user's signed-in devices, newest first.
func (s *Session) Sessions(ctx context.Context) ([]SessionInfo, error) {
	var out SessionsResponse
	if err := s.doJSON(ctx, http.MethodGet, "/v1/sessions", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// RevokeSession signs out one of the user's sessions.
func (s *Session) RevokeSession(ctx context.Context, id string) error {
	return s.doJSON(ctx, http.MethodDelete, "/v1/sessions/"+url.PathEscape(id), nil, nil, http.StatusNoContent)
}

// RevokeOtherSessions signs out every session except this one.
func (s *Session) RevokeOtherSessions(ctx context.Context) error {
	return s.doJSON(ctx, http.MethodPost, "/v1/sessions/revoke-others", nil, nil, http.StatusNoContent)
}

// SignOut ends this session.
func (s *Session) SignOut(ctx context.Context) error {
	err := s.doJSON(ctx, http.MethodPost, "/v1/auth/sign-out", nil, nil, http.StatusNoContent)
	if err == nil {
		s.forget()
	}
	return err
}
