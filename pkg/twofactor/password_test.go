package twofactor_test

import (
	"context"
	"testing"

	"github.com/aussiebroadwan/starterkit/pkg/twofactor"
	"github.com/stretchr/testify/require"
)

func TestDisable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		password  string
		wantErr   error
		invalid   bool
		wantOpen  bool
		wantCalls int
	}{
		{name: "accepted", password: goodPassword, wantCalls: 1},
		{name: "wrong password keeps open", password: "nope", wantErr: errWrongPassword, wantOpen: true, wantCalls: 1},
		{name: "empty password", password: "", invalid: true, wantOpen: true},
		{name: "padded password", password: "  " + goodPassword + "\t", wantCalls: 1},
		{name: "blank password", password: "   ", invalid: true, wantOpen: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := newFakeService()
			svc.enabled = true
			d := twofactor.NewDisable(svc, twofactor.Options{})
			d.Open()

			err := d.Submit(context.Background(), tt.password)
			switch {
			case tt.invalid:
				var verr *twofactor.ValidationError
				require.ErrorAs(t, err, &verr)
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			default:
				require.NoError(t, err)
				require.False(t, svc.enabled)
			}
			require.Equal(t, tt.wantOpen, d.IsOpen())
			require.Equal(t, tt.wantCalls, svc.disableCalls)
		})
	}
}

func TestDisableClosed(t *testing.T) {
	t.Parallel()
	svc := newFakeService()
	d := twofactor.NewDisable(svc, twofactor.Options{})

	require.ErrorIs(t, d.Submit(context.Background(), goodPassword), twofactor.ErrClosed)
	require.Zero(t, svc.disableCalls)
}

func TestRegenerateInvalidatesCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newFakeService()
	cache := twofactor.NewCodeCache(svc)

	before, err := cache.Get(ctx)
	require.NoError(t, err)
	require.Len(t, before, 3)

	g := twofactor.NewRegenerate(svc, cache, twofactor.Options{})
	g.Open()
	require.NoError(t, g.Submit(ctx, goodPassword))
	require.False(t, g.IsOpen())

	_, cached := cache.Peek()
	require.False(t, cached)

	after, err := cache.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, g.Codes(), after)
	for _, code := range before {
		require.NotContains(t, after, code)
	}
}

func TestRegenerateWrongPasswordKeepsCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newFakeService()
	cache := twofactor.NewCodeCache(svc)

	before, err := cache.Get(ctx)
	require.NoError(t, err)

	g := twofactor.NewRegenerate(svc, cache, twofactor.Options{})
	g.Open()
	require.ErrorIs(t, g.Submit(ctx, "nope"), errWrongPassword)
	require.True(t, g.IsOpen())
	require.Empty(t, g.Codes())

	cachedCodes, cached := cache.Peek()
	require.True(t, cached)
	require.Equal(t, before, cachedCodes)
}

func TestRegenerateAfterCloseStillInvalidates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newFakeService()
	cache := twofactor.NewCodeCache(svc)
	_, err := cache.Get(ctx)
	require.NoError(t, err)

	g := twofactor.NewRegenerate(svc, cache, twofactor.Options{})
	g.Open()

	started, release := svc.hold()
	done := make(chan error, 1)
	go func() { done <- g.Submit(ctx, goodPassword) }()
	<-started
	g.Close()
	release()

	require.ErrorIs(t, <-done, twofactor.ErrClosed)
	require.Empty(t, g.Codes())

	// The server rotated, so the old list must not be served.
	_, cached := cache.Peek()
	require.False(t, cached)
}
