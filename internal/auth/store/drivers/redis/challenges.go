// Package redis keeps short-lived sign-in challenges in Redis so they expire
// on their own and can be shared between replicas.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aussiebroadwan/starterkit/internal/auth/domain"
	"github.com/aussiebroadwan/starterkit/internal/auth/store"

	"github.com/redis/go-redis/v9"
)

const challengeKeyPrefix = "2fa:challenge:"

// incrExisting bumps the attempt counter without resurrecting a key that
// expired between the read and the increment.
var incrExisting = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
return redis.call("HINCRBY", KEYS[1], "attempts", 1)
`)

// ChallengeStore implements store.Challenges on top of Redis hashes. Keys
// carry the challenge TTL, so DeleteExpiredChallenges has nothing to do.
type ChallengeStore struct {
	rdb redis.UniversalClient
}

var _ store.Challenges = (*ChallengeStore)(nil)

func NewChallengeStore(rdb redis.UniversalClient) *ChallengeStore {
	return &ChallengeStore{rdb: rdb}
}

// Connect parses url (redis://...) and verifies the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func key(id string) string { return challengeKeyPrefix + id }

func (s *ChallengeStore) CreateChallenge(ctx context.Context, c domain.Challenge) error {
	ttl := time.Until(c.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("challenge %s already expired", c.ID)
	}

	k := key(c.ID)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, k,
			"user_id", c.UserID,
			"attempts", c.Attempts,
			"ip_address", c.IPAddress,
			"user_agent", c.UserAgent,
			"created_at", c.CreatedAt.UnixMilli(),
			"expires_at", c.ExpiresAt.UnixMilli(),
		)
		pipe.PExpire(ctx, k, ttl)
		return nil
	})
	return err
}

func (s *ChallengeStore) GetChallenge(ctx context.Context, id string) (domain.Challenge, error) {
	fields, err := s.rdb.HGetAll(ctx, key(id)).Result()
	if err != nil {
		return domain.Challenge{}, err
	}
	if len(fields) == 0 {
		return domain.Challenge{}, store.ErrNotFound
	}

	c := domain.Challenge{
		ID:        id,
		UserID:    fields["user_id"],
		IPAddress: fields["ip_address"],
		UserAgent: fields["user_agent"],
	}
	if c.Attempts, err = strconv.Atoi(fields["attempts"]); err != nil {
		return domain.Challenge{}, fmt.Errorf("decode attempts: %w", err)
	}
	created, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("decode created_at: %w", err)
	}
	expires, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("decode expires_at: %w", err)
	}
	c.CreatedAt = time.UnixMilli(created).UTC()
	c.ExpiresAt = time.UnixMilli(expires).UTC()

	// Key expiry has millisecond resolution but clocks can disagree.
	if !time.Now().Before(c.ExpiresAt) {
		return domain.Challenge{}, store.ErrNotFound
	}
	return c, nil
}

func (s *ChallengeStore) IncrementChallengeAttempts(ctx context.Context, id string) (int, error) {
	n, err := incrExisting.Run(ctx, s.rdb, []string{key(id)}).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, store.ErrNotFound
		}
		return 0, err
	}
	if n < 0 {
		return 0, store.ErrNotFound
	}
	return n, nil
}

func (s *ChallengeStore) DeleteChallenge(ctx context.Context, id string) (bool, error) {
	n, err := s.rdb.Del(ctx, key(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *ChallengeStore) DeleteExpiredChallenges(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// Ping reports whether Redis is reachable; used by the readiness probe.
func (s *ChallengeStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
