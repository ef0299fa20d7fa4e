package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/starterkit/internal/auth/blob"
	"github.com/aussiebroadwan/starterkit/internal/auth/store"
	"github.com/aussiebroadwan/starterkit/pkg/idx"
	"github.com/aussiebroadwan/starterkit/pkg/slogx"
)

// MaxAvatarSize is the largest accepted avatar upload.
const MaxAvatarSize = 800 << 10

// avatarTypes maps accepted content types to the stored file extension.
var avatarTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

type AvatarService struct {
	Store store.Store
	Blobs blob.Store
	Clock func() time.Time
}

// Upload stores a new avatar for the user and returns its public URL. The
// previous avatar, if any, is removed afterwards on a best-effort basis.
func (s *AvatarService) Upload(ctx context.Context, userID, filename, contentType string, size int64, body io.Reader) (string, error) {
	l := slogx.FromContext(ctx)

	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	if _, ok := avatarTypes[contentType]; !ok {
		return "", ErrUnsupportedImageType
	}
	if size > MaxAvatarSize {
		return "", ErrImageTooLarge
	}

	// The declared size is client supplied; never read past the limit.
	data, err := io.ReadAll(io.LimitReader(body, MaxAvatarSize+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxAvatarSize {
		return "", ErrImageTooLarge
	}
	if len(data) == 0 {
		return "", ErrInvalidRequest
	}

	// Trust the bytes, not the header.
	sniffed := http.DetectContentType(data)
	ext, ok := avatarTypes[sniffed]
	if !ok {
		l.Info("avatar rejected", "declared", contentType, "sniffed", sniffed, "filename", filename)
		return "", ErrUnsupportedImageType
	}

	u, err := getUser(ctx, s.Store, userID)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("avatars/%s-%s.%s", u.ID, idx.NewAt(s.now()), ext)
	url, err := s.Blobs.Put(ctx, key, sniffed, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("store avatar: %w", err)
	}

	if err := s.Store.Users().UpdateImage(ctx, u.ID, &url); err != nil {
		s.removeBlob(ctx, url)
		return "", fmt.Errorf("update image: %w", err)
	}

	if u.Image != nil && *u.Image != url {
		s.removeBlob(ctx, *u.Image)
	}

	l.Info("avatar uploaded", "user_id", u.ID, "key", key, "bytes", len(data))
	return url, nil
}

// Delete clears the user's avatar. A user without one is left as is.
func (s *AvatarService) Delete(ctx context.Context, userID string) error {
	u, err := getUser(ctx, s.Store, userID)
	if err != nil {
		return err
	}
	if u.Image == nil {
		return nil
	}

	if err := s.Store.Users().UpdateImage(ctx, u.ID, nil); err != nil {
		return fmt.Errorf("clear image: %w", err)
	}
	s.removeBlob(ctx, *u.Image)
	return nil
}

// removeBlob deletes the object behind url. Failures are only logged; an
// orphaned file is preferable to failing the user's request.
func (s *AvatarService) removeBlob(ctx context.Context, url string) {
	key, ok := s.Blobs.KeyFromURL(url)
	if !ok {
		// Image set elsewhere (e.g. an external provider).
		return
	}
	if err := s.Blobs.Delete(ctx, key); err != nil {
		slogx.FromContext(ctx).Warn("failed to delete avatar blob", "key", key, "err", err)
	}
}

func (s *AvatarService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}
