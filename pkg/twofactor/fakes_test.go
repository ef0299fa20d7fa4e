package twofactor_test

import (
	"context"
	"net/http"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/aussiebroadwan/starterkit/pkg/authsdk"
	"github.com/aussiebroadwan/starterkit/pkg/twofactor"
)

const (
	goodPassword = "correct horse battery"
	testURI      = "otpauth://totp/App:user?secret=ABCDEFGH&issuer=App"
)

var (
	errWrongPassword = authsdk.NewAPIError(http.StatusUnauthorized, authsdk.ErrorCodeInvalidCredentials, "invalid email or password")
	errBadTOTP       = authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidTOTPCode, "invalid code")
	errBadBackup     = authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidBackupCode, "invalid backup code")
)

// fakeService is an in-memory account. release, when set, is waited on by
// every call so tests can hold a submission in flight.
type fakeService struct {
	mu sync.Mutex

	totpCode string
	sets     [][]string // successive backup-code sets; regenerate advances

	enabled      bool
	set          int
	enableCalls  int
	verifyCalls  []string
	disableCalls int
	listCalls    int

	started chan struct{}
	release chan struct{}
}

func newFakeService() *fakeService {
	return &fakeService{
		totpCode: "AB12CD",
		sets: [][]string{
			{"AAAA-1111", "BBBB-2222", "CCCC-3333"},
			{"DDDD-4444", "EEEE-5555", "FFFF-6666"},
		},
	}
}

// hold makes the next calls block until the returned func is called.
func (f *fakeService) hold() (started <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = make(chan struct{}, 8)
	f.release = make(chan struct{})
	return f.started, func() { close(f.release) }
}

func (f *fakeService) wait() {
	f.mu.Lock()
	started, release := f.started, f.release
	f.mu.Unlock()
	if release == nil {
		return
	}
	select {
	case started <- struct{}{}:
	default:
	}
	<-release
}

// waitCtx is wait that also gives up when ctx ends.
func (f *fakeService) waitCtx(ctx context.Context) error {
	f.mu.Lock()
	started, release := f.started, f.release
	f.mu.Unlock()
	if release == nil {
		return nil
	}
	select {
	case started <- struct{}{}:
	default:
	}
	select {
	case <-release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeService) EnableTwoFactor(_ context.Context, password, _ string) (*authsdk.TwoFactorSetup, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enableCalls++
	if password != goodPassword {
		return nil, errWrongPassword
	}
	return &authsdk.TwoFactorSetup{TOTPURI: testURI, BackupCodes: slices.Clone(f.sets[f.set])}, nil
}

func (f *fakeService) VerifyTOTP(_ context.Context, code string) error {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls = append(f.verifyCalls, code)
	if code != f.totpCode {
		return errBadTOTP
	}
	f.enabled = true
	return nil
}

func (f *fakeService) DisableTwoFactor(_ context.Context, password string) error {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disableCalls++
	if password != goodPassword {
		return errWrongPassword
	}
	f.enabled = false
	return nil
}

func (f *fakeService) RegenerateBackupCodes(_ context.Context, password string) ([]string, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	if password != goodPassword {
		return nil, errWrongPassword
	}
	f.set = (f.set + 1) % len(f.sets)
	return slices.Clone(f.sets[f.set]), nil
}

func (f *fakeService) ListBackupCodes(ctx context.Context) ([]string, error) {
	if err := f.waitCtx(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return slices.Clone(f.sets[f.set]), nil
}

func (f *fakeService) lists() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

type verifyCall struct {
	method    string
	code      string
	trust     bool
	terminate bool
}

// fakeChallenge accepts one TOTP code any number of times and each backup
// code once.
type fakeChallenge struct {
	mu       sync.Mutex
	totpCode string
	unused   map[string]bool
	calls    []verifyCall
	err      error

	started chan struct{}
	release chan struct{}
}

// hold makes the next verification block until release is called.
func (c *fakeChallenge) hold() (started <-chan struct{}, release func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = make(chan struct{}, 1)
	c.release = make(chan struct{})
	return c.started, func() { close(c.release) }
}

func (c *fakeChallenge) wait() {
	c.mu.Lock()
	started, release := c.started, c.release
	c.mu.Unlock()
	if release == nil {
		return
	}
	select {
	case started <- struct{}{}:
	default:
	}
	<-release
}

func newFakeChallenge(codes ...string) *fakeChallenge {
	unused := make(map[string]bool, len(codes))
	for _, c := range codes {
		unused[c] = true
	}
	return &fakeChallenge{totpCode: "123456", unused: unused}
}

func testSession() *authsdk.Session {
	return authsdk.NewClient("http://auth.invalid").NewSessionFromToken("access", "session-1", 3600)
}

func (c *fakeChallenge) VerifyTOTP(_ context.Context, code string, trust bool) (*authsdk.Session, error) {
	c.wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, verifyCall{method: "totp", code: code, trust: trust})
	if c.err != nil {
		return nil, c.err
	}
	if code != c.totpCode {
		return nil, errBadTOTP
	}
	return testSession(), nil
}

func (c *fakeChallenge) VerifyRecoveryCode(_ context.Context, code string, trust, terminate bool) (*authsdk.Session, error) {
	c.wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, verifyCall{method: "backup", code: code, trust: trust, terminate: terminate})
	if c.err != nil {
		return nil, c.err
	}
	if !c.unused[code] {
		return nil, errBadBackup
	}
	delete(c.unused, code)
	return testSession(), nil
}

func (c *fakeChallenge) recorded() []verifyCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.calls)
}

// fakeClock fires AfterFunc callbacks only when advanced.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) twofactor.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	rest := c.timers[:0]
	for _, t := range c.timers {
		if t.stopped {
			continue
		}
		if !t.at.After(c.now) {
			t.stopped = true
			due = append(due, t)
			continue
		}
		rest = append(rest, t)
	}
	c.timers = rest
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

type fakeClipboard struct {
	mu   sync.Mutex
	text string
	err  error
}

func (c *fakeClipboard) WriteText(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.text = text
	return nil
}

func (c *fakeClipboard) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	failures  []error
}

func (n *recordingNotifier) Success(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, msg)
}

func (n *recordingNotifier) Failure(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, err)
}

func (n *recordingNotifier) counts() (int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.successes), len(n.failures)
}
