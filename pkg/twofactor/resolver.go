package twofactor

import (
	"context"
	"strings"
	"sync"

	"github.com/aussiebroadwan/starterkit/pkg/authsdk"
)

// Mode selects which second factor the resolver asks for.
type Mode int

const (
	TOTPCode Mode = iota
	RecoveryCode
)

func (m Mode) String() string {
	switch m {
	case TOTPCode:
		return "totp_code"
	case RecoveryCode:
		return "recovery_code"
	default:
		return "unknown"
	}
}

// MinChallengeCodeLength is the shortest code the resolver submits.
const MinChallengeCodeLength = 6

// Resolver completes a sign-in that stopped at the second factor. It is open
// from creation until a verification succeeds or Close is called.
type Resolver struct {
	challenge ChallengeVerifier
	opts      Options

	mu          sync.Mutex
	gate        gate
	mode        Mode
	totpCode    string
	recovery    string
	trustDevice bool
	expired     bool
	session     *authsdk.Session
}

func NewResolver(challenge ChallengeVerifier, opts Options) *Resolver {
	r := &Resolver{challenge: challenge, opts: opts}
	r.gate.reset(true)
	return r
}

func (r *Resolver) Mode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// SwitchMode changes mode and clears both inputs and the trust flag. It
// never calls the service.
func (r *Resolver) SwitchMode(m Mode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.gate.open {
		return ErrClosed
	}
	if r.gate.busy {
		return ErrBusy
	}
	r.mode = m
	r.totpCode = ""
	r.recovery = ""
	r.trustDevice = false
	return nil
}

// SetCode stores input for the current mode. It is ignored while a
// submission is in flight or after the resolver closed.
func (r *Resolver) SetCode(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gate.ready() != nil {
		return
	}
	if r.mode == RecoveryCode {
		r.recovery = code
	} else {
		r.totpCode = code
	}
}

// Code is the input of the current mode.
func (r *Resolver) Code() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mode == RecoveryCode {
		return r.recovery
	}
	return r.totpCode
}

// SetTrustDevice only has an effect in TOTPCode mode, and like SetCode is
// ignored while busy or closed.
func (r *Resolver) SetTrustDevice(trust bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gate.ready() != nil {
		return
	}
	if r.mode == TOTPCode {
		r.trustDevice = trust
	}
}

func (r *Resolver) TrustDevice() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trustDevice
}

func (r *Resolver) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gate.busy
}

// Expired reports that the server gave up on the challenge (too many
// attempts or expiry). The user has to sign in again.
func (r *Resolver) Expired() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.expired
}

// Session is the signed-in session after a successful Submit.
func (r *Resolver) Session() *authsdk.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// Submit verifies the current mode's code. A TOTP code is trimmed and
// upper-cased, a recovery code only trimmed. A recovery code is always sent
// without trusting the device or terminating other sessions.
func (r *Resolver) Submit(ctx context.Context) error {
	r.mu.Lock()
	if err := r.gate.ready(); err != nil {
		r.mu.Unlock()
		return err
	}
	mode, trust := r.mode, r.trustDevice
	code := NormalizeCode(r.totpCode)
	if mode == RecoveryCode {
		code = strings.TrimSpace(r.recovery)
	}
	if len(code) < MinChallengeCodeLength {
		r.mu.Unlock()
		return &ValidationError{Field: "code", Message: "code must be at least 6 characters"}
	}
	gen, err := r.gate.begin()
	r.mu.Unlock()
	if err != nil {
		return err
	}

	var sess *authsdk.Session
	if mode == RecoveryCode {
		sess, err = r.challenge.VerifyRecoveryCode(ctx, code, false, false)
	} else {
		sess, err = r.challenge.VerifyTOTP(ctx, code, trust)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.gate.settle(gen); err != nil {
		return err
	}
	if err != nil {
		switch authsdk.ErrorCode(err) {
		case authsdk.ErrorCodeTooManyAttempts, authsdk.ErrorCodeInvalidChallenge:
			r.expired = true
		}
		r.opts.failure(err)
		return err
	}

	r.session = sess
	r.totpCode = ""
	r.recovery = ""
	r.trustDevice = false
	r.gate.reset(false)
	r.opts.success("Signed in")
	return nil
}

// Close abandons the challenge. Input is cleared; a completed Session is
// kept.
func (r *Resolver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gate.reset(false)
	r.totpCode = ""
	r.recovery = ""
	r.trustDevice = false
}
