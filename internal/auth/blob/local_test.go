package blob_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aussiebroadwan/starterkit/internal/auth/blob"
	"github.com/stretchr/testify/require"
)

func TestLocalStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	s, err := blob.NewLocalStore(dir, "/uploads")
	require.NoError(t, err)

	url, err := s.Put(ctx, "avatars/u1-1.png", "image/png", strings.NewReader("png-bytes"), 9)
	require.NoError(t, err)
	require.Equal(t, "/uploads/avatars/u1-1.png", url)

	data, err := os.ReadFile(filepath.Join(dir, "avatars", "u1-1.png"))
	require.NoError(t, err)
	require.Equal(t, "png-bytes", string(data))

	key, ok := s.KeyFromURL(url)
	require.True(t, ok)
	require.Equal(t, "avatars/u1-1.png", key)

	t.Run("served over http", func(t *testing.T) {
		srv := httptest.NewServer(s.Handler())
		defer srv.Close()

		resp, err := http.Get(srv.URL + url)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		require.Equal(t, "png-bytes", string(body))

		resp, err = http.Get(srv.URL + "/uploads/avatars/")
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	require.NoError(t, s.Delete(ctx, key))
	_, err = os.Stat(filepath.Join(dir, "avatars", "u1-1.png"))
	require.ErrorIs(t, err, os.ErrNotExist)

	// Deleting again is fine.
	require.NoError(t, s.Delete(ctx, key))
}

func TestLocalStoreRejectsBadKeys(t *testing.T) {
	t.Parallel()

	s, err := blob.NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	for _, key := range []string{"", "/etc/passwd", "../escape.png", "avatars/../../x", "avatars//x", `a\b`} {
		_, err := s.Put(context.Background(), key, "image/png", strings.NewReader("x"), 1)
		require.ErrorIs(t, err, blob.ErrInvalidKey, "key %q", key)
	}

	for _, url := range []string{"https://cdn.example.com/avatars/x.png", "/uploads/../secret", "/uploadsavatars/x.png"} {
		_, ok := s.KeyFromURL(url)
		require.False(t, ok, "url %q", url)
	}
}
