package cryptox_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/starterkit/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	t.Parallel()

	s, err := cryptox.NewSealer([]byte("test-master-key-for-encryption-12345"))
	require.NoError(t, err)

	sealed1, err := s.SealString("JBSWY3DPEHPK3PXP")
	require.NoError(t, err)
	sealed2, err := s.SealString("JBSWY3DPEHPK3PXP")
	require.NoError(t, err)

	// Random nonce per call
	require.NotEqual(t, sealed1, sealed2)

	for _, sealed := range [][]byte{sealed1, sealed2} {
		got, err := s.OpenString(sealed)
		require.NoError(t, err)
		require.Equal(t, "JBSWY3DPEHPK3PXP", got)
	}
}

func TestOpenWithWrongKeyFails(t *testing.T) {
	t.Parallel()

	a, err := cryptox.NewSealer([]byte("key-a"))
	require.NoError(t, err)
	b, err := cryptox.NewSealer([]byte("key-b"))
	require.NoError(t, err)

	sealed, err := a.Seal([]byte("secret"))
	require.NoError(t, err)

	_, err = b.Open(sealed)
	require.Error(t, err)
}

func TestOpenTamperedAndShortInput(t *testing.T) {
	t.Parallel()

	s, err := cryptox.NewSealer([]byte("key"))
	require.NoError(t, err)

	sealed, err := s.Seal([]byte("secret"))
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff

	_, err = s.Open(sealed)
	require.Error(t, err)

	_, err = s.Open([]byte{1, 2, 3})
	require.ErrorIs(t, err, cryptox.ErrCiphertextTooShort)
}

func TestNewSealerRejectsEmptyMaterial(t *testing.T) {
	t.Parallel()
	_, err := cryptox.NewSealer(nil)
	require.Error(t, err)
}

func TestLoadSealerFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "master.key")
	require.NoError(t, os.WriteFile(path, []byte("file-material\n"), 0o600))

	fromFile, err := cryptox.LoadSealer(path)
	require.NoError(t, err)
	require.False(t, fromFile.Ephemeral())

	// Trailing newline is ignored when deriving the key
	direct, err := cryptox.NewSealer([]byte("file-material"))
	require.NoError(t, err)

	sealed, err := fromFile.Seal([]byte("x"))
	require.NoError(t, err)
	got, err := direct.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, []byte("x"), got)
}

func TestLoadSealerMissingFile(t *testing.T) {
	t.Parallel()
	_, err := cryptox.LoadSealer(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestLoadSealerFromEnvAndEphemeral(t *testing.T) {
	t.Setenv(cryptox.MasterKeyEnv, "")
	eph, err := cryptox.LoadSealer("")
	require.NoError(t, err)
	require.True(t, eph.Ephemeral())

	t.Setenv(cryptox.MasterKeyEnv, "env-material")
	fromEnv, err := cryptox.LoadSealer("")
	require.NoError(t, err)
	require.False(t, fromEnv.Ephemeral())
}
