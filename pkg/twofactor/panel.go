package twofactor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ExportFileName is the suggested name for an exported code list.
const ExportFileName = "recovery-codes.txt"

// ErrHidden is returned by panel actions while the codes are not shown.
var ErrHidden = errors.New("twofactor: recovery codes are hidden")

// RecoveryCodes is the show/hide panel listing the remaining backup codes.
// Nothing is fetched until the panel is shown.
type RecoveryCodes struct {
	cache *CodeCache
	app   string
	opts  Options

	mu      sync.Mutex
	visible bool
	copied  flash
}

// NewRecoveryCodes returns a hidden panel. app names the account in exports.
func NewRecoveryCodes(cache *CodeCache, app string, opts Options) *RecoveryCodes {
	return &RecoveryCodes{cache: cache, app: app, opts: opts}
}

func (p *RecoveryCodes) Visible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible
}

// Show reveals the panel and returns the current codes.
func (p *RecoveryCodes) Show(ctx context.Context) ([]string, error) {
	codes, err := p.cache.Get(ctx)
	if err != nil {
		p.opts.failure(err)
		return nil, err
	}

	p.mu.Lock()
	p.visible = true
	p.mu.Unlock()
	return codes, nil
}

func (p *RecoveryCodes) Hide() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visible = false
	p.copied.clear()
}

// Toggle flips visibility. The codes are returned when the panel ends up
// shown.
func (p *RecoveryCodes) Toggle(ctx context.Context) ([]string, error) {
	if p.Visible() {
		p.Hide()
		return nil, nil
	}
	return p.Show(ctx)
}

// Copied reports whether CopyAll ran within the last CopyFeedback.
func (p *RecoveryCodes) Copied() bool { return p.copied.isOn() }

func (p *RecoveryCodes) shown(ctx context.Context) ([]string, error) {
	if !p.Visible() {
		return nil, ErrHidden
	}
	return p.cache.Get(ctx)
}

// CopyAll puts every code on the clipboard, one per line.
func (p *RecoveryCodes) CopyAll(ctx context.Context) error {
	codes, err := p.shown(ctx)
	if err != nil {
		return err
	}
	if p.opts.Clipboard == nil {
		return ErrNoClipboard
	}

	if err := p.opts.Clipboard.WriteText(ctx, strings.Join(codes, "\n")); err != nil {
		p.opts.failure(err)
		return err
	}
	p.copied.trigger(p.opts.clock())
	p.opts.success("Recovery codes copied")
	return nil
}

// Export renders the codes as a text file and returns its suggested name.
func (p *RecoveryCodes) Export(ctx context.Context) (string, []byte, error) {
	codes, err := p.shown(ctx)
	if err != nil {
		return "", nil, err
	}
	return ExportFileName, FormatExport(p.app, codes, p.opts.clock().Now()), nil
}

// FormatExport renders a numbered code list with its generation time.
func FormatExport(app string, codes []string, generated time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "Recovery Codes for %s\n", app)
	b.WriteString(strings.Repeat("=", 30))
	b.WriteString("\n\nKeep these codes in a safe place. Each code can only be used once.\n\n")
	for i, code := range codes {
		fmt.Fprintf(&b, "%d. %s\n", i+1, code)
	}
	fmt.Fprintf(&b, "\nGenerated: %s\n", generated.Format(time.RFC1123))
	return []byte(b.String())
}
