package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Client talks to the auth service. It provides the unauthenticated
// operations and creates Sessions.
//
// A Client remembers the device token handed out when a sign-in trusted the
// device and sends it with later sign-ins, so one Client stands for one
// device.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	mu          sync.RWMutex
	deviceToken string
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// DeviceToken returns the remembered trusted-device token, if any.
func (c *Client) DeviceToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.deviceToken
}

// SetDeviceToken replaces the remembered trusted-device token, e.g. one
// restored from disk. An empty token forgets it.
func (c *Client) SetDeviceToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deviceToken = token
}

// SignUp creates a password account and returns its first session.
func (c *Client) SignUp(ctx context.Context, email, name, password string) (*Session, error) {
	var tok TokenResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/auth/sign-up",
		SignUpRequest{Email: email, Name: name, Password: password},
		&tok, http.StatusCreated)
	if err != nil {
		return nil, err
	}
	return newSession(c, &tok), nil
}

// SignIn authenticates with a password. When the account has two-factor on
// and this device is not trusted, it returns a *TwoFactorRequiredError whose
// Challenge completes the sign-in.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	body, err := json.Marshal(SignInRequest{
		Email:       email,
		Password:    password,
		DeviceToken: c.DeviceToken(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/sign-in", bytes.NewReader(body), jsonHeaders)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusConflict {
		var required TwoFactorRequiredResponse
		if err := json.Unmarshal(raw, &required); err == nil &&
			required.Error == ErrorCodeTwoFactorRequired && required.ChallengeToken != "" {
			return nil, &TwoFactorRequiredError{Challenge: newChallenge(c, required)}
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(resp, raw)
	}

	var tok TokenResponse
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return newSession(c, &tok), nil
}

// SignInWith runs SignIn and, when a challenge is required, hands it to
// resolve. It is a convenience for callers that can produce a code inline.
func (c *Client) SignInWith(
	ctx context.Context,
	email, password string,
	resolve func(context.Context, *Challenge) (*Session, error),
) (*Session, error) {
	sess, err := c.SignIn(ctx, email, password)
	var required *TwoFactorRequiredError
	if errors.As(err, &required) {
		return resolve(ctx, required.Challenge)
	}
	return sess, err
}

// NewSessionFromToken wraps an access token obtained elsewhere.
func (c *Client) NewSessionFromToken(accessToken, sessionID string, expiresIn int64) *Session {
	return newSession(c, &TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   expiresIn,
		SessionID:   sessionID,
	})
}
