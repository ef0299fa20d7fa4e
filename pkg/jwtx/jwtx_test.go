package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/starterkit/pkg/cryptox"
	"github.com/aussiebroadwan/starterkit/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const testIssuer = "starterkit-auth"

func newSigner(t *testing.T) *jwtx.EdDSASigner {
	t.Helper()
	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	s, err := jwtx.NewSignerEdDSA("", pemKey)
	require.NoError(t, err)
	return s
}

func TestSignAndVerify(t *testing.T) {
	t.Parallel()

	signer := newSigner(t)
	require.NotEmpty(t, signer.KID())

	keys := jwtx.NewKeySet()
	require.False(t, keys.IsReady())
	keys.AddSigner(signer)
	require.True(t, keys.IsReady())

	claims := jwtx.NewSessionClaims("user-1", "sess-1", "a@example.com", testIssuer,
		[]string{jwtx.AMRPassword, jwtx.AMROTP, jwtx.AMRMFA}, time.Hour, time.Now().UTC())

	token, err := signer.Sign(claims)
	require.NoError(t, err)

	got, err := jwtx.NewVerifierEdDSA(keys, testIssuer, 0).Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", got.Subject)
	require.Equal(t, "sess-1", got.SID)
	require.Equal(t, "a@example.com", got.Email)
	require.True(t, got.HasAMR(jwtx.AMRMFA))
	require.False(t, got.HasAMR(jwtx.AMRRecovery))
	require.NotEmpty(t, got.ID)
}

func TestKIDIsStableForKey(t *testing.T) {
	t.Parallel()

	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	a, err := jwtx.NewSignerEdDSA("", pemKey)
	require.NoError(t, err)
	b, err := jwtx.NewSignerEdDSA("", pemKey)
	require.NoError(t, err)
	require.Equal(t, a.KID(), b.KID())
}

func TestVerifyFailures(t *testing.T) {
	t.Parallel()

	signer := newSigner(t)
	keys := jwtx.NewKeySet()
	keys.AddSigner(signer)
	verifier := jwtx.NewVerifierEdDSA(keys, testIssuer, 0)
	now := time.Now().UTC()

	sign := func(c jwtx.Claims) string {
		tok, err := signer.Sign(c)
		require.NoError(t, err)
		return tok
	}

	t.Run("wrong issuer", func(t *testing.T) {
		tok := sign(jwtx.NewSessionClaims("u", "s", "", "someone-else", nil, time.Hour, now))
		_, err := verifier.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("expired", func(t *testing.T) {
		tok := sign(jwtx.NewSessionClaims("u", "s", "", testIssuer, nil, time.Minute, now.Add(-time.Hour)))
		_, err := verifier.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("missing session", func(t *testing.T) {
		tok := sign(jwtx.NewSessionClaims("u", "", "", testIssuer, nil, time.Hour, now))
		_, err := verifier.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrMissingSID)
	})

	t.Run("unknown key", func(t *testing.T) {
		other := newSigner(t)
		tok, err := other.Sign(jwtx.NewSessionClaims("u", "s", "", testIssuer, nil, time.Hour, now))
		require.NoError(t, err)
		_, err = verifier.Verify(tok)
		require.Error(t, err)
	})

	t.Run("tampered signature", func(t *testing.T) {
		tok := sign(jwtx.NewSessionClaims("u", "s", "", testIssuer, nil, time.Hour, now))
		parts := strings.Split(tok, ".")
		flip := "A"
		if parts[2][0] == 'A' {
			flip = "B"
		}
		parts[2] = flip + parts[2][1:]
		_, err := verifier.Verify(strings.Join(parts, "."))
		require.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := verifier.Verify("not.a.jwt")
		require.Error(t, err)
	})
}

func TestClaimsValidateLeeway(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	c := jwtx.NewSessionClaims("u", "s", "", testIssuer, nil, time.Minute, now)

	later := now.Add(time.Minute + 20*time.Second)
	require.ErrorIs(t, c.Validate(testIssuer, 0, later), jwtx.ErrExpired)
	require.NoError(t, c.Validate(testIssuer, 30*time.Second, later))
	require.ErrorIs(t, c.Validate(testIssuer, 0, now.Add(-time.Minute)), jwtx.ErrNotYetValid)
	require.NoError(t, c.Validate("", 0, now))
}
