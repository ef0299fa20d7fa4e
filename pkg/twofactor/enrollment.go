package twofactor

import (
	"context"
	"strings"
	"sync"
)

// Step is a state of the enrollment flow.
type Step int

const (
	AwaitingPassword Step = iota
	AwaitingTOTPConfirmation
	AwaitingCodeVerification
)

func (s Step) String() string {
	switch s {
	case AwaitingPassword:
		return "awaiting_password"
	case AwaitingTOTPConfirmation:
		return "awaiting_totp_confirmation"
	case AwaitingCodeVerification:
		return "awaiting_code_verification"
	default:
		return "unknown"
	}
}

// Action moves the enrollment flow between steps.
type Action int

const (
	ActionPasswordAccepted Action = iota
	ActionContinue
	ActionBack
)

// enrollmentTransitions lists every allowed (step, action) pair. Anything
// else is ErrInvalidTransition. Nothing leads back to AwaitingPassword; a
// fresh secret means closing and reopening the flow.
var enrollmentTransitions = map[Step]map[Action]Step{
	AwaitingPassword: {
		ActionPasswordAccepted: AwaitingTOTPConfirmation,
	},
	AwaitingTOTPConfirmation: {
		ActionContinue: AwaitingCodeVerification,
	},
	AwaitingCodeVerification: {
		ActionBack: AwaitingTOTPConfirmation,
	},
}

// EnrollmentCodeLength is the exact length of a confirmation code.
const EnrollmentCodeLength = 6

// Enrollment drives turning two-factor on: password re-verification, secret
// display, then code confirmation. It is safe for concurrent use.
type Enrollment struct {
	svc    Enabler
	issuer string
	opts   Options

	mu     sync.Mutex
	gate   gate
	step   Step
	uri    string
	secret string
	copied flash
}

// NewEnrollment returns a closed flow. issuer is the label shown in
// authenticator apps; empty lets the service pick its own.
func NewEnrollment(svc Enabler, issuer string, opts Options) *Enrollment {
	return &Enrollment{svc: svc, issuer: issuer, opts: opts}
}

// Open starts a new enrollment at AwaitingPassword, discarding any previous
// one.
func (e *Enrollment) Open() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.teardown(true)
}

// Close discards the enrollment. It is idempotent and is called on every
// exit path, including success.
func (e *Enrollment) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.teardown(false)
}

func (e *Enrollment) teardown(reopen bool) {
	e.gate.reset(reopen)
	e.step = AwaitingPassword
	e.uri = ""
	e.secret = ""
	e.copied.clear()
}

func (e *Enrollment) IsOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gate.open
}

func (e *Enrollment) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gate.busy
}

func (e *Enrollment) Step() Step {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.step
}

// TOTPURI is the provisioning URI to render as a QR code. Empty until the
// password has been accepted.
func (e *Enrollment) TOTPURI() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.uri
}

// Secret is the shared secret for manual entry.
func (e *Enrollment) Secret() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.secret
}

// Copied reports whether CopySecret ran within the last CopyFeedback.
func (e *Enrollment) Copied() bool { return e.copied.isOn() }

// apply performs a transition. Callers hold e.mu.
func (e *Enrollment) apply(a Action) error {
	next, ok := enrollmentTransitions[e.step][a]
	if !ok {
		return ErrInvalidTransition
	}
	e.step = next
	return nil
}

// SubmitPassword asks the service for a new secret. On success the flow
// moves to AwaitingTOTPConfirmation; on failure it stays where it was.
func (e *Enrollment) SubmitPassword(ctx context.Context, password string) error {
	password, err := requirePassword(password)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if e.gate.open && e.step != AwaitingPassword {
		e.mu.Unlock()
		return ErrInvalidTransition
	}
	gen, err := e.gate.begin()
	e.mu.Unlock()
	if err != nil {
		return err
	}

	setup, err := e.svc.EnableTwoFactor(ctx, password, e.issuer)
	var secret string
	if err == nil {
		secret, err = ParseSecret(setup.TOTPURI)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.gate.settle(gen); err != nil {
		return err
	}
	if err != nil {
		e.opts.failure(err)
		return err
	}

	e.uri = setup.TOTPURI
	e.secret = secret
	return e.apply(ActionPasswordAccepted)
}

// Continue moves from the secret display to code entry. It makes no
// service call.
func (e *Enrollment) Continue() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.gate.open {
		return ErrClosed
	}
	return e.apply(ActionContinue)
}

// Back returns from code entry to the secret display. The secret is kept;
// no new one is requested.
func (e *Enrollment) Back() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.gate.open {
		return ErrClosed
	}
	if e.gate.busy {
		return ErrBusy
	}
	return e.apply(ActionBack)
}

// NormalizeCode trims a code and upper-cases it.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// SubmitCode confirms the enrollment with a code from the authenticator.
// Success closes the flow.
func (e *Enrollment) SubmitCode(ctx context.Context, code string) error {
	code = NormalizeCode(code)
	if len(code) != EnrollmentCodeLength {
		return &ValidationError{Field: "code", Message: "code must be 6 characters"}
	}

	e.mu.Lock()
	if e.gate.open && e.step != AwaitingCodeVerification {
		e.mu.Unlock()
		return ErrInvalidTransition
	}
	gen, err := e.gate.begin()
	e.mu.Unlock()
	if err != nil {
		return err
	}

	err = e.svc.VerifyTOTP(ctx, code)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.gate.settle(gen); err != nil {
		return err
	}
	if err != nil {
		e.opts.failure(err)
		return err
	}

	e.teardown(false)
	e.opts.success("Two-factor authentication enabled")
	return nil
}

// CopySecret puts the secret on the clipboard and turns Copied on.
func (e *Enrollment) CopySecret(ctx context.Context) error {
	e.mu.Lock()
	secret := e.secret
	e.mu.Unlock()
	if secret == "" {
		return ErrInvalidTransition
	}
	if e.opts.Clipboard == nil {
		return ErrNoClipboard
	}

	if err := e.opts.Clipboard.WriteText(ctx, secret); err != nil {
		e.opts.failure(err)
		return err
	}
	e.copied.trigger(e.opts.clock())
	return nil
}
