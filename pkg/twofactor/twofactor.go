package twofactor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/starterkit/pkg/authsdk"
)

// CopyFeedback is how long a "copied" acknowledgement stays on.
const CopyFeedback = 2 * time.Second

var (
	// ErrBusy is returned when a submission is made while the previous one
	// has not settled.
	ErrBusy = errors.New("twofactor: submission already in flight")

	// ErrClosed is returned for actions on a closed flow, and for results
	// that arrive after the flow was closed. Such results are discarded.
	ErrClosed = errors.New("twofactor: flow is closed")

	// ErrInvalidTransition is returned for an action the current step does
	// not allow.
	ErrInvalidTransition = errors.New("twofactor: action not allowed in current step")

	// ErrNoClipboard is returned by copy actions when Options has no
	// Clipboard.
	ErrNoClipboard = errors.New("twofactor: no clipboard configured")
)

// ValidationError is a local input error. No service call was made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("twofactor: invalid %s: %s", e.Field, e.Message)
}

// Enabler turns two-factor on for the signed-in user.
type Enabler interface {
	EnableTwoFactor(ctx context.Context, password, issuer string) (*authsdk.TwoFactorSetup, error)
	// VerifyTOTP confirms enrollment. It never trusts the device.
	VerifyTOTP(ctx context.Context, code string) error
}

type Disabler interface {
	DisableTwoFactor(ctx context.Context, password string) error
}

type Regenerator interface {
	RegenerateBackupCodes(ctx context.Context, password string) ([]string, error)
}

type CodeLister interface {
	ListBackupCodes(ctx context.Context) ([]string, error)
}

// AuthService is everything the settings flows need from a signed-in
// session. *authsdk.Session implements it.
type AuthService interface {
	Enabler
	Disabler
	Regenerator
	CodeLister
}

// ChallengeVerifier completes a sign-in that requires a second factor.
// *authsdk.Challenge implements it.
type ChallengeVerifier interface {
	VerifyTOTP(ctx context.Context, code string, trustDevice bool) (*authsdk.Session, error)
	VerifyRecoveryCode(ctx context.Context, code string, trustDevice, terminateOtherSessions bool) (*authsdk.Session, error)
}

var (
	_ AuthService       = (*authsdk.Session)(nil)
	_ ChallengeVerifier = (*authsdk.Challenge)(nil)
)

// Timer is a pending AfterFunc call.
type Timer interface {
	Stop() bool
}

// Clock is injected so copy feedback and export timestamps can be tested.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Clipboard receives copied text.
type Clipboard interface {
	WriteText(ctx context.Context, text string) error
}

// Notifier receives the user-visible outcome of each submission. Service
// rejections are passed through unchanged.
type Notifier interface {
	Success(message string)
	Failure(err error)
}

// Options are shared by all controllers. Zero values are valid.
type Options struct {
	Clock     Clock
	Clipboard Clipboard
	Notifier  Notifier
}

func (o Options) clock() Clock {
	if o.Clock == nil {
		return SystemClock
	}
	return o.Clock
}

func (o Options) success(msg string) {
	if o.Notifier != nil {
		o.Notifier.Success(msg)
	}
}

func (o Options) failure(err error) {
	if o.Notifier != nil {
		o.Notifier.Failure(err)
	}
}

// gate tracks whether a flow is open and whether a submission is in flight.
// The generation changes on every open and close, so a result that comes
// back after teardown can tell it belongs to a discarded flow. Callers hold
// the owning controller's lock.
type gate struct {
	open bool
	busy bool
	gen  uint64
}

func (g *gate) reset(open bool) {
	g.open = open
	g.busy = false
	g.gen++
}

// ready reports whether a submission could start now.
func (g *gate) ready() error {
	switch {
	case !g.open:
		return ErrClosed
	case g.busy:
		return ErrBusy
	}
	return nil
}

// begin claims the flow for one submission and returns its generation.
func (g *gate) begin() (uint64, error) {
	if err := g.ready(); err != nil {
		return 0, err
	}
	g.busy = true
	return g.gen, nil
}

// settle releases the submission. It reports ErrClosed when the flow was
// torn down or reopened while the call was running.
func (g *gate) settle(gen uint64) error {
	if gen != g.gen {
		return ErrClosed
	}
	g.busy = false
	return nil
}

// flash is a flag that switches itself off after CopyFeedback.
type flash struct {
	mu    sync.Mutex
	on    bool
	gen   uint64
	timer Timer
}

func (f *flash) trigger(clock Clock) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.timer != nil {
		f.timer.Stop()
	}
	f.on = true
	f.gen++
	gen := f.gen
	f.timer = clock.AfterFunc(CopyFeedback, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.gen == gen {
			f.on = false
			f.timer = nil
		}
	})
}

func (f *flash) isOn() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.on
}

func (f *flash) clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.on = false
	f.gen++
}

func requirePassword(password string) (string, error) {
	password = strings.TrimSpace(password)
	if password == "" {
		return "", &ValidationError{Field: "password", Message: "password is required"}
	}
	return password, nil
}
