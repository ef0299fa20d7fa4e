package authsdk

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"
)

// ErrSessionExpired is returned locally, without a request, once the access
// token has expired. Sign in again to continue.
var ErrSessionExpired = errors.New("authsdk: session expired")

// Session is an authenticated session. It is safe for concurrent use.
type Session struct {
	client *Client

	mu          sync.RWMutex
	accessToken string
	sessionID   string
	expiresAt   time.Time
}

// newSession creates a session from a token response.
func newSession(client *Client, tok *TokenResponse) *Session {
	// Treat the token as expired 30 seconds early so requests in flight do
	// not race the deadline.
	expiresAt := time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - 30*time.Second)

	return &Session{
		client:      client,
		accessToken: tok.AccessToken,
		sessionID:   tok.SessionID,
		expiresAt:   expiresAt,
	}
}

// AccessToken returns the current access token.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// ID returns the server-side session id the token is bound to.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

// getValidToken returns the access token, or ErrSessionExpired.
func (s *Session) getValidToken() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.accessToken == "" {
		return "", ErrSessionExpired
	}
	if !s.expiresAt.IsZero() && !time.Now().Before(s.expiresAt) {
		return "", ErrSessionExpired
	}
	return s.accessToken, nil
}

// forget drops the token after the session was ended on purpose.
func (s *Session) forget() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = ""
}

// doAuthRequest performs an authenticated HTTP request using the session's access token.
func (s *Session) doAuthRequest(
	ctx context.Context,
	method, path string,
	body io.Reader,
	headers map[string]string,
) (*http.Response, error) {
	token, err := s.getValidToken()
	if err != nil {
		return nil, err
	}
	return s.client.doTokenRequest(ctx, token, method, path, body, headers)
}

func (s *Session) doJSON(ctx context.Context, method, path string, in, out any, expectedStatus int) error {
	token, err := s.getValidToken()
	if err != nil {
		return err
	}
	return s.client.doTokenJSON(ctx, token, method, path, in, out, expectedStatus)
}
