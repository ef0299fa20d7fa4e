package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"
)

type fakeMinio struct {
	bucketExists bool
	made         []string
	objects      map[string]string
	types        map[string]string
	putErr       error
}

func (f *fakeMinio) BucketExists(context.Context, string) (bool, error) { return f.bucketExists, nil }

func (f *fakeMinio) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	f.made = append(f.made, bucket)
	return nil
}

func (f *fakeMinio) PutObject(_ context.Context, _, key string, r io.Reader, _ int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.objects[key] = string(b)
	f.types[key] = opts.ContentType
	return minio.UploadInfo{Key: key, Size: int64(len(b))}, nil
}

func (f *fakeMinio) RemoveObject(_ context.Context, _, key string, _ minio.RemoveObjectOptions) error {
	delete(f.objects, key)
	return nil
}

func newFake() *fakeMinio {
	return &fakeMinio{objects: map[string]string{}, types: map[string]string{}}
}

func TestS3StoreCreatesMissingBucket(t *testing.T) {
	t.Parallel()

	api := newFake()
	_, err := newS3Store(context.Background(), api, "avatars", "", "http://minio:9000/avatars")
	require.NoError(t, err)
	require.Equal(t, []string{"avatars"}, api.made)

	api = newFake()
	api.bucketExists = true
	_, err = newS3Store(context.Background(), api, "avatars", "", "http://minio:9000/avatars")
	require.NoError(t, err)
	require.Empty(t, api.made)
}

func TestS3StorePutDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	api := newFake()
	s, err := newS3Store(ctx, api, "avatars", "", "http://minio:9000/avatars/")
	require.NoError(t, err)

	url, err := s.Put(ctx, "avatars/u1-5.webp", "image/webp", strings.NewReader("webp"), 4)
	require.NoError(t, err)
	require.Equal(t, "http://minio:9000/avatars/avatars/u1-5.webp", url)
	require.Equal(t, "webp", api.objects["avatars/u1-5.webp"])
	require.Equal(t, "image/webp", api.types["avatars/u1-5.webp"])

	key, ok := s.KeyFromURL(url)
	require.True(t, ok)
	require.NoError(t, s.Delete(ctx, key))
	require.Empty(t, api.objects)

	api.putErr = errors.New("boom")
	_, err = s.Put(ctx, "avatars/u1-6.png", "image/png", strings.NewReader("x"), 1)
	require.ErrorContains(t, err, "put object")
}
