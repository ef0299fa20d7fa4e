package twofactor_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/starterkit/pkg/authsdk"
	"github.com/aussiebroadwan/starterkit/pkg/twofactor"
	"github.com/stretchr/testify/require"
)

func TestResolverTOTP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		code  string
		trust bool
		ok    bool
	}{
		{name: "trusted", code: "123456", trust: true, ok: true},
		{name: "untrusted", code: "123456", ok: true},
		{name: "wrong code", code: "654321", trust: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ch := newFakeChallenge()
			r := twofactor.NewResolver(ch, twofactor.Options{})
			r.SetCode(tt.code)
			r.SetTrustDevice(tt.trust)

			err := r.Submit(context.Background())
			require.Equal(t, []verifyCall{{method: "totp", code: tt.code, trust: tt.trust}}, ch.recorded())
			if !tt.ok {
				require.ErrorIs(t, err, errBadTOTP)
				require.Nil(t, r.Session())
				require.Equal(t, tt.code, r.Code(), "input is kept for retry")
				return
			}
			require.NoError(t, err)
			require.NotNil(t, r.Session())
			require.Equal(t, "session-1", r.Session().ID())
		})
	}
}

func TestResolverRecoveryCodeSingleUse(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ch := newFakeChallenge("AAAA-1111")

	first := twofactor.NewResolver(ch, twofactor.Options{})
	require.NoError(t, first.SwitchMode(twofactor.RecoveryCode))
	first.SetCode("AAAA-1111")
	require.NoError(t, first.Submit(ctx))
	require.NotNil(t, first.Session())

	second := twofactor.NewResolver(ch, twofactor.Options{})
	require.NoError(t, second.SwitchMode(twofactor.RecoveryCode))
	second.SetCode("AAAA-1111")
	require.ErrorIs(t, second.Submit(ctx), errBadBackup)
	require.Nil(t, second.Session())
}

func TestResolverRecoveryCodeNeverTrusts(t *testing.T) {
	t.Parallel()
	ch := newFakeChallenge("AAAA-1111")
	r := twofactor.NewResolver(ch, twofactor.Options{})

	r.SetTrustDevice(true)
	require.NoError(t, r.SwitchMode(twofactor.RecoveryCode))
	r.SetTrustDevice(true)
	require.False(t, r.TrustDevice())

	r.SetCode("AAAA-1111")
	require.NoError(t, r.Submit(context.Background()))
	require.Equal(t, []verifyCall{{method: "backup", code: "AAAA-1111"}}, ch.recorded())
}

func TestResolverModeSwitchIsolation(t *testing.T) {
	t.Parallel()
	ch := newFakeChallenge()
	r := twofactor.NewResolver(ch, twofactor.Options{})

	r.SetCode("123")
	r.SetTrustDevice(true)

	require.NoError(t, r.SwitchMode(twofactor.RecoveryCode))
	require.Equal(t, twofactor.RecoveryCode, r.Mode())
	require.Empty(t, r.Code())
	r.SetCode("AAAA")

	require.NoError(t, r.SwitchMode(twofactor.TOTPCode))
	require.Empty(t, r.Code())
	require.False(t, r.TrustDevice())

	require.NoError(t, r.SwitchMode(twofactor.RecoveryCode))
	require.Empty(t, r.Code())

	require.Empty(t, ch.recorded(), "switching never calls the service")
}

func TestResolverValidation(t *testing.T) {
	t.Parallel()

	for _, mode := range []twofactor.Mode{twofactor.TOTPCode, twofactor.RecoveryCode} {
		t.Run(mode.String(), func(t *testing.T) {
			t.Parallel()
			ch := newFakeChallenge()
			r := twofactor.NewResolver(ch, twofactor.Options{})
			require.NoError(t, r.SwitchMode(mode))
			r.SetCode("12345")

			var verr *twofactor.ValidationError
			require.ErrorAs(t, r.Submit(context.Background()), &verr)
			require.Empty(t, ch.recorded())
		})
	}
}

func TestResolverExpired(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		expired bool
	}{
		{name: "too many attempts", err: authsdk.NewAPIError(http.StatusTooManyRequests, authsdk.ErrorCodeTooManyAttempts, ""), expired: true},
		{name: "challenge gone", err: authsdk.NewAPIError(http.StatusUnauthorized, authsdk.ErrorCodeInvalidChallenge, ""), expired: true},
		{name: "wrong code", err: errBadTOTP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ch := newFakeChallenge()
			ch.err = tt.err
			notes := &recordingNotifier{}
			r := twofactor.NewResolver(ch, twofactor.Options{Notifier: notes})
			r.SetCode("123456")

			require.Error(t, r.Submit(context.Background()))
			require.Equal(t, tt.expired, r.Expired())
			_, failed := notes.counts()
			require.Equal(t, 1, failed)
		})
	}
}

func TestResolverDoneAfterSuccess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ch := newFakeChallenge()
	r := twofactor.NewResolver(ch, twofactor.Options{})
	r.SetCode("123456")
	require.NoError(t, r.Submit(ctx))

	r.SetCode("123456")
	require.ErrorIs(t, r.Submit(ctx), twofactor.ErrClosed)
	require.ErrorIs(t, r.SwitchMode(twofactor.RecoveryCode), twofactor.ErrClosed)
	require.Len(t, ch.recorded(), 1)

	r.Close()
	require.NotNil(t, r.Session())
}

func TestResolverNormalizesInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		mode  twofactor.Mode
		input string
		want  verifyCall
	}{
		{name: "totp upper-cased", mode: twofactor.TOTPCode, input: "ab12cd", want: verifyCall{method: "totp", code: "AB12CD"}},
		{name: "totp trimmed", mode: twofactor.TOTPCode, input: "  ab12cd\n", want: verifyCall{method: "totp", code: "AB12CD"}},
		{name: "recovery trimmed", mode: twofactor.RecoveryCode, input: "  ABCDE-FGHJK  ", want: verifyCall{method: "backup", code: "ABCDE-FGHJK"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ch := newFakeChallenge("ABCDE-FGHJK")
			ch.totpCode = "AB12CD"
			r := twofactor.NewResolver(ch, twofactor.Options{})
			require.NoError(t, r.SwitchMode(tt.mode))
			r.SetCode(tt.input)

			require.NoError(t, r.Submit(context.Background()))
			require.Equal(t, []verifyCall{tt.want}, ch.recorded())
		})
	}
}

func TestResolverPaddedShortCodeRejected(t *testing.T) {
	t.Parallel()
	ch := newFakeChallenge()
	r := twofactor.NewResolver(ch, twofactor.Options{})
	require.NoError(t, r.SwitchMode(twofactor.RecoveryCode))
	r.SetCode("   x   ")

	var verr *twofactor.ValidationError
	require.ErrorAs(t, r.Submit(context.Background()), &verr)
	require.Empty(t, ch.recorded())
}

func TestResolverInputFrozenWhileBusy(t *testing.T) {
	t.Parallel()
	ch := newFakeChallenge()
	r := twofactor.NewResolver(ch, twofactor.Options{})
	r.SetCode("123456")
	r.SetTrustDevice(true)

	started, release := ch.hold()
	done := make(chan error, 1)
	go func() { done <- r.Submit(context.Background()) }()
	<-started

	r.SetCode("999999")
	r.SetTrustDevice(false)
	require.Equal(t, "123456", r.Code())
	require.True(t, r.TrustDevice())
	require.ErrorIs(t, r.Submit(context.Background()), twofactor.ErrBusy)

	release()
	require.NoError(t, <-done)
	require.Equal(t, []verifyCall{{method: "totp", code: "123456", trust: true}}, ch.recorded())

	// Success clears every input.
	require.Empty(t, r.Code())
	require.False(t, r.TrustDevice())
}

func TestResolverInputIgnoredAfterClose(t *testing.T) {
	t.Parallel()
	r := twofactor.NewResolver(newFakeChallenge(), twofactor.Options{})
	r.Close()

	r.SetCode("999999")
	r.SetTrustDevice(true)
	require.Empty(t, r.Code())
	require.False(t, r.TrustDevice())
	require.ErrorIs(t, r.Submit(context.Background()), twofactor.ErrClosed)
}
