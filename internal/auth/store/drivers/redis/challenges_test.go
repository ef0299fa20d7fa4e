package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/starterkit/internal/auth/domain"
	"github.com/aussiebroadwan/starterkit/internal/auth/store"
	authredis "github.com/aussiebroadwan/starterkit/internal/auth/store/drivers/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*miniredis.Miniredis, *authredis.ChallengeStore) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return mr, authredis.NewChallengeStore(rdb)
}

func TestChallengeRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, s := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Millisecond)

	c := domain.Challenge{
		ID:        "abc",
		UserID:    "user-1",
		IPAddress: "10.0.0.1",
		UserAgent: "test-agent",
		CreatedAt: now,
		ExpiresAt: now.Add(10 * time.Minute),
	}
	require.NoError(t, s.CreateChallenge(ctx, c))

	got, err := s.GetChallenge(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, c.UserID, got.UserID)
	require.Equal(t, c.UserAgent, got.UserAgent)
	require.True(t, c.ExpiresAt.Equal(got.ExpiresAt))
	require.Zero(t, got.Attempts)

	for want := 1; want <= 5; want++ {
		n, err := s.IncrementChallengeAttempts(ctx, "abc")
		require.NoError(t, err)
		require.Equal(t, want, n)
	}

	deleted, err := s.DeleteChallenge(ctx, "abc")
	require.NoError(t, err)
	require.True(t, deleted)

	deleted, err = s.DeleteChallenge(ctx, "abc")
	require.NoError(t, err)
	require.False(t, deleted)

	_, err = s.GetChallenge(ctx, "abc")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestChallengeExpiresWithKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mr, s := newTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, s.CreateChallenge(ctx, domain.Challenge{
		ID: "ttl", UserID: "user-1", CreatedAt: now, ExpiresAt: now.Add(time.Minute),
	}))
	require.True(t, mr.Exists("2fa:challenge:ttl"))

	mr.FastForward(2 * time.Minute)

	_, err := s.GetChallenge(ctx, "ttl")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.IncrementChallengeAttempts(ctx, "ttl")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.False(t, mr.Exists("2fa:challenge:ttl"), "increment must not recreate the key")
}

func TestCreateRejectsExpiredChallenge(t *testing.T) {
	t.Parallel()

	_, s := newTestStore(t)
	now := time.Now()

	err := s.CreateChallenge(context.Background(), domain.Challenge{
		ID: "late", UserID: "user-1", CreatedAt: now, ExpiresAt: now.Add(-time.Second),
	})
	require.Error(t, err)
}
