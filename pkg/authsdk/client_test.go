package authsdk

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// stubServer records the last request and replies with a canned response.
type stubServer struct {
	mu     sync.Mutex
	status int
	body   string
	last   recorded
}

type recorded struct {
	method string
	path   string
	auth   string
	body   []byte
	header http.Header
}

func (s *stubServer) start(t *testing.T) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		s.mu.Lock()
		s.last = recorded{
			method: r.Method,
			path:   r.URL.Path,
			auth:   r.Header.Get("Authorization"),
			body:   body,
			header: r.Header.Clone(),
		}
		status, reply := s.status, s.body
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL + "/")
}

func (s *stubServer) reply(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status, s.body = status, body
}

func (s *stubServer) request() recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

const tokenBody = `{"access_token":"at","token_type":"Bearer","expires_in":3600,"session_id":"sid-1"}`

func TestSignIn(t *testing.T) {
	t.Parallel()

	t.Run("session", func(t *testing.T) {
		stub := &stubServer{status: http.StatusOK, body: tokenBody}
		c := stub.start(t)

		sess, err := c.SignIn(t.Context(), "ada@example.com", "pw")
		require.NoError(t, err)
		require.Equal(t, "at", sess.AccessToken())
		require.Equal(t, "sid-1", sess.ID())
		require.WithinDuration(t, time.Now().Add(time.Hour-30*time.Second), sess.ExpiresAt(), 5*time.Second)

		require.Equal(t, http.MethodPost, stub.request().method)
		require.Equal(t, "/v1/auth/sign-in", stub.request().path)

		var req SignInRequest
		require.NoError(t, json.Unmarshal(stub.request().body, &req))
		require.Equal(t, SignInRequest{Email: "ada@example.com", Password: "pw"}, req)
	})

	t.Run("two factor required", func(t *testing.T) {
		stub := &stubServer{
			status: http.StatusConflict,
			body:   `{"error":"two_factor_required","challenge_token":"ct","methods":["totp","backup_code"],"expires_at":"2030-01-01T00:00:00Z"}`,
		}
		c := stub.start(t)

		_, err := c.SignIn(t.Context(), "ada@example.com", "pw")
		var required *TwoFactorRequiredError
		require.ErrorAs(t, err, &required)
		require.Equal(t, []string{"totp", "backup_code"}, required.Challenge.Methods())
		require.Equal(t, 2030, required.Challenge.ExpiresAt().Year())
		require.Nil(t, required.Challenge.Session())
	})

	t.Run("other conflict is an api error", func(t *testing.T) {
		stub := &stubServer{status: http.StatusConflict, body: `{"error":"email_taken"}`}
		c := stub.start(t)

		_, err := c.SignIn(t.Context(), "ada@example.com", "pw")
		require.Equal(t, ErrorCodeEmailTaken, ErrorCode(err))
	})

	t.Run("rejected", func(t *testing.T) {
		stub := &stubServer{
			status: http.StatusUnauthorized,
			body:   `{"error":"invalid_credentials","error_description":"email or password is incorrect"}`,
		}
		c := stub.start(t)

		_, err := c.SignIn(t.Context(), "ada@example.com", "pw")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		require.Equal(t, ErrorCodeInvalidCredentials, apiErr.Code)
		require.Equal(t, "invalid_credentials: email or password is incorrect", apiErr.Error())
	})
}

func TestChallengeTrustedDeviceIsRemembered(t *testing.T) {
	t.Parallel()

	stub := &stubServer{
		status: http.StatusOK,
		body:   `{"access_token":"at","token_type":"Bearer","expires_in":3600,"session_id":"sid","device_token":"dev-1"}`,
	}
	c := stub.start(t)
	ch := newChallenge(c, TwoFactorRequiredResponse{ChallengeToken: "ct", Methods: []string{"totp"}})

	sess, err := ch.VerifyTOTP(t.Context(), "123456", true)
	require.NoError(t, err)
	require.Same(t, sess, ch.Session())
	require.Equal(t, "dev-1", c.DeviceToken())

	require.Equal(t, "/v1/two-factor/verify-totp", stub.request().path)
	require.Empty(t, stub.request().auth)
	var req VerifyTOTPRequest
	require.NoError(t, json.Unmarshal(stub.request().body, &req))
	require.Equal(t, VerifyTOTPRequest{Code: "123456", TrustDevice: true, ChallengeToken: "ct"}, req)

	// Later sign-ins carry the device token.
	stub.reply(http.StatusOK, tokenBody)
	_, err = c.SignIn(t.Context(), "ada@example.com", "pw")
	require.NoError(t, err)
	var signIn SignInRequest
	require.NoError(t, json.Unmarshal(stub.request().body, &signIn))
	require.Equal(t, "dev-1", signIn.DeviceToken)
}

func TestChallengeRecoveryCode(t *testing.T) {
	t.Parallel()

	stub := &stubServer{status: http.StatusOK, body: tokenBody}
	c := stub.start(t)
	ch := newChallenge(c, TwoFactorRequiredResponse{ChallengeToken: "ct"})

	_, err := ch.VerifyRecoveryCode(t.Context(), "ABCD-EFGH", false, true)
	require.NoError(t, err)
	require.Empty(t, c.DeviceToken())

	var req VerifyBackupCodeRequest
	require.NoError(t, json.Unmarshal(stub.request().body, &req))
	require.Equal(t, VerifyBackupCodeRequest{Code: "ABCD-EFGH", DisableSession: true, ChallengeToken: "ct"}, req)

	stub.reply(http.StatusBadRequest, `{"error":"invalid_backup_code"}`)
	_, err = ch.VerifyRecoveryCode(t.Context(), "ABCD-EFGH", false, false)
	require.ErrorIs(t, err, &APIError{Code: ErrorCodeInvalidBackupCode})
}

func TestListBackupCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		want     []string
		wantCode string
	}{
		{
			name:   "codes",
			status: http.StatusOK,
			body:   `{"status":true,"code":"SUCCESS","message":"Backup codes retrieved successfully","data":["A","B"],"errors":null}`,
			want:   []string{"A", "B"},
		},
		{
			name:   "empty",
			status: http.StatusOK,
			body:   `{"status":true,"code":"SUCCESS","message":"ok","data":null,"errors":null}`,
			want:   []string{},
		},
		{
			name:     "unauthorized",
			status:   http.StatusUnauthorized,
			body:     `{"status":false,"code":"UNAUTHORIZED","message":"Unauthorized","data":null,"errors":null}`,
			wantCode: "UNAUTHORIZED",
		},
		{
			name:     "not enabled",
			status:   http.StatusBadRequest,
			body:     `{"status":false,"code":"BAD_REQUEST","message":"two-factor is not enabled","data":null,"errors":null}`,
			wantCode: "BAD_REQUEST",
		},
		{
			name:     "not json",
			status:   http.StatusBadGateway,
			body:     `<html>bad gateway</html>`,
			wantCode: ErrorCodeServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubServer{status: tt.status, body: tt.body}
			sess := stub.start(t).NewSessionFromToken("at", "sid", 3600)

			codes, err := sess.ListBackupCodes(t.Context())
			require.Equal(t, "Bearer at", stub.request().auth)
			require.Equal(t, "/v1/two-factor/recovery-codes", stub.request().path)
			if tt.wantCode != "" {
				require.Equal(t, tt.wantCode, ErrorCode(err))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, codes)
		})
	}
}

func TestSessionRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		call   func(*Session) error
		status int
		body   string
		method string
		path   string
		req    string
	}{
		{
			name: "enable",
			call: func(s *Session) error {
				setup, err := s.EnableTwoFactor(t.Context(), "pw", "Acme")
				if err == nil && setup.TOTPURI != "otpauth://totp/x" {
					return errors.New("unexpected uri")
				}
				return err
			},
			status: http.StatusOK,
			body:   `{"totp_uri":"otpauth://totp/x","backup_codes":["A"]}`,
			method: http.MethodPost,
			path:   "/v1/two-factor/enable",
			req:    `{"password":"pw","issuer":"Acme"}`,
		},
		{
			name:   "verify enrollment",
			call:   func(s *Session) error { return s.VerifyTOTP(t.Context(), "123456") },
			status: http.StatusNoContent,
			method: http.MethodPost,
			path:   "/v1/two-factor/verify-totp",
			req:    `{"code":"123456"}`,
		},
		{
			name:   "disable",
			call:   func(s *Session) error { return s.DisableTwoFactor(t.Context(), "pw") },
			status: http.StatusNoContent,
			method: http.MethodPost,
			path:   "/v1/two-factor/disable",
			req:    `{"password":"pw"}`,
		},
		{
			name: "regenerate",
			call: func(s *Session) error {
				_, err := s.RegenerateBackupCodes(t.Context(), "pw")
				return err
			},
			status: http.StatusOK,
			body:   `{"backup_codes":["A","B"]}`,
			method: http.MethodPost,
			path:   "/v1/two-factor/generate-backup-codes",
			req:    `{"password":"pw"}`,
		},
		{
			name:   "revoke session",
			call:   func(s *Session) error { return s.RevokeSession(t.Context(), "01HX") },
			status: http.StatusNoContent,
			method: http.MethodDelete,
			path:   "/v1/sessions/01HX",
		},
		{
			name:   "delete avatar",
			call:   func(s *Session) error { return s.DeleteAvatar(t.Context()) },
			status: http.StatusNoContent,
			method: http.MethodDelete,
			path:   "/v1/upload/avatar",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubServer{status: tt.status, body: tt.body}
			sess := stub.start(t).NewSessionFromToken("at", "sid", 3600)

			require.NoError(t, tt.call(sess))
			require.Equal(t, tt.method, stub.request().method)
			require.Equal(t, tt.path, stub.request().path)
			require.Equal(t, "Bearer at", stub.request().auth)
			if tt.req != "" {
				require.JSONEq(t, tt.req, string(stub.request().body))
			}
		})
	}
}

func TestUploadAvatar(t *testing.T) {
	t.Parallel()

	stub := &stubServer{status: http.StatusOK, body: `{"url":"/uploads/avatars/u-1.png"}`}
	sess := stub.start(t).NewSessionFromToken("at", "sid", 3600)

	url, err := sess.UploadAvatar(t.Context(), "/home/ada/me.png", "image/png", strings.NewReader("\x89PNG"))
	require.NoError(t, err)
	require.Equal(t, "/uploads/avatars/u-1.png", url)

	require.True(t, strings.HasPrefix(stub.request().header.Get("Content-Type"), "multipart/form-data; boundary="))
	require.Contains(t, string(stub.request().body), `name="file"; filename="me.png"`)
	require.Contains(t, string(stub.request().body), "Content-Type: image/png")
}

func TestSignOutForgetsToken(t *testing.T) {
	t.Parallel()

	stub := &stubServer{status: http.StatusNoContent}
	sess := stub.start(t).NewSessionFromToken("at", "sid", 3600)

	require.NoError(t, sess.SignOut(t.Context()))
	require.ErrorIs(t, sess.DeleteAvatar(t.Context()), ErrSessionExpired)
}

func TestExpiredSessionMakesNoRequest(t *testing.T) {
	t.Parallel()

	stub := &stubServer{status: http.StatusOK}
	sess := stub.start(t).NewSessionFromToken("at", "sid", 10)

	_, err := sess.Account(t.Context())
	require.ErrorIs(t, err, ErrSessionExpired)
	require.Empty(t, stub.request().path)
}
