package authsdk

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"
)

// Challenge is a pending second-factor check returned by SignIn. It is
// single use: once a verification succeeds the server forgets it.
type Challenge struct {
	client *Client

	token     string
	methods   []string
	expiresAt time.Time

	mu      sync.Mutex
	session *Session
}

func newChallenge(c *Client, r TwoFactorRequiredResponse) *Challenge {
	return &Challenge{
		client:    c,
		token:     r.ChallengeToken,
		methods:   r.Methods,
		expiresAt: r.ExpiresAt,
	}
}

// Methods lists the second factors the server accepts ("totp", "backup_code").
func (ch *Challenge) Methods() []string { return slices.Clone(ch.methods) }

func (ch *Challenge) ExpiresAt() time.Time { return ch.expiresAt }

// Session returns the session created by a successful verification.
func (ch *Challenge) Session() *Session {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.session
}

// VerifyTOTP completes the sign-in with an authenticator code. When
// trustDevice is set the returned device token is remembered by the Client
// and skips the second factor on later sign-ins until the server lets it
// expire.
func (ch *Challenge) VerifyTOTP(ctx context.Context, code string, trustDevice bool) (*Session, error) {
	var tok TokenResponse
	err := ch.client.doJSON(ctx, http.MethodPost, "/v1/two-factor/verify-totp", VerifyTOTPRequest{
		Code:           code,
		TrustDevice:    trustDevice,
		ChallengeToken: ch.token,
	}, &tok, http.StatusOK)
	if err != nil {
		return nil, err
	}

	if tok.DeviceToken != "" {
		ch.client.SetDeviceToken(tok.DeviceToken)
	}
	return ch.complete(&tok), nil
}

// VerifyRecoveryCode completes the sign-in with a backup code. Each code
// works once. terminateOtherSessions signs out every other session of the
// account. The server never trusts a device on a backup code; trustDevice
// is forwarded as given.
func (ch *Challenge) VerifyRecoveryCode(ctx context.Context, code string, trustDevice, terminateOtherSessions bool) (*Session, error) {
	var tok TokenResponse
	err := ch.client.doJSON(ctx, http.MethodPost, "/v1/two-factor/verify-backup-code", VerifyBackupCodeRequest{
		Code:           code,
		TrustDevice:    trustDevice,
		DisableSession: terminateOtherSessions,
		ChallengeToken: ch.token,
	}, &tok, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return ch.complete(&tok), nil
}

func (ch *Challenge) complete(tok *TokenResponse) *Session {
	sess := newSession(ch.client, tok)

	ch.mu.Lock()
	ch.session = sess
	ch.mu.Unlock()

	return sess
}
