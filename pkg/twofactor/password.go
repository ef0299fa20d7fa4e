package twofactor

import (
	"context"
	"sync"
)

// Disable turns two-factor off behind a password prompt. Success closes it;
// a rejection keeps it open for another try.
type Disable struct {
	svc  Disabler
	opts Options

	mu   sync.Mutex
	gate gate
}

func NewDisable(svc Disabler, opts Options) *Disable {
	return &Disable{svc: svc, opts: opts}
}

func (d *Disable) Open() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gate.reset(true)
}

func (d *Disable) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gate.reset(false)
}

func (d *Disable) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gate.open
}

func (d *Disable) Submit(ctx context.Context, password string) error {
	password, err := requirePassword(password)
	if err != nil {
		return err
	}

	d.mu.Lock()
	gen, err := d.gate.begin()
	d.mu.Unlock()
	if err != nil {
		return err
	}

	err = d.svc.DisableTwoFactor(ctx, password)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.gate.settle(gen); err != nil {
		return err
	}
	if err != nil {
		d.opts.failure(err)
		return err
	}

	d.gate.reset(false)
	d.opts.success("Two-factor authentication disabled")
	return nil
}

// Regenerate replaces every backup code behind a password prompt. On
// success the shared CodeCache is invalidated before the surface closes, so
// no reader can observe the previous set afterwards.
type Regenerate struct {
	svc   Regenerator
	cache *CodeCache
	opts  Options

	mu    sync.Mutex
	gate  gate
	codes []string
}

// NewRegenerate returns a closed controller. cache may be nil.
func NewRegenerate(svc Regenerator, cache *CodeCache, opts Options) *Regenerate {
	return &Regenerate{svc: svc, cache: cache, opts: opts}
}

func (g *Regenerate) Open() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gate.reset(true)
	g.codes = nil
}

func (g *Regenerate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gate.reset(false)
}

func (g *Regenerate) IsOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gate.open
}

// Codes returns the set issued by the last successful Submit.
func (g *Regenerate) Codes() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.codes...)
}

func (g *Regenerate) Submit(ctx context.Context, password string) error {
	password, err := requirePassword(password)
	if err != nil {
		return err
	}

	g.mu.Lock()
	gen, err := g.gate.begin()
	g.mu.Unlock()
	if err != nil {
		return err
	}

	codes, err := g.svc.RegenerateBackupCodes(ctx, password)

	// The server has rotated regardless of what happened to this surface.
	if err == nil && g.cache != nil {
		g.cache.Invalidate()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.gate.settle(gen); err != nil {
		return err
	}
	if err != nil {
		g.opts.failure(err)
		return err
	}

	g.codes = codes
	g.gate.reset(false)
	g.opts.success("Backup codes regenerated")
	return nil
}
