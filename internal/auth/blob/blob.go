// Package blob stores avatar images and maps them to public URLs.
package blob

import (
	"context"
	"errors"
	"io"
	"strings"
)

var ErrInvalidKey = errors.New("blob: invalid key")

// Store is an object store addressed by slash-separated keys.
type Store interface {
	// Put writes the object and returns its public URL.
	Put(ctx context.Context, key, contentType string, r io.Reader, size int64) (string, error)

	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error

	// KeyFromURL reverses Put's URL. ok is false for URLs this store did not issue.
	KeyFromURL(url string) (key string, ok bool)
}

func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}

func keyFromURL(base, url string) (string, bool) {
	prefix := strings.TrimRight(base, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(url, prefix)
	if !validKey(key) {
		return "", false
	}
	return key, true
}
