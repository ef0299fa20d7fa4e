package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/starterkit/internal/auth/domain"
)

type challengesRepo struct {
	q querier
}

func (r *challengesRepo) CreateChallenge(ctx context.Context, c domain.Challenge) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO two_factor_challenges (id, user_id, attempts, ip_address, user_agent, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Attempts, c.IPAddress, c.UserAgent, toMillis(c.CreatedAt), toMillis(c.ExpiresAt),
	)
	return err
}

func (r *challengesRepo) GetChallenge(ctx context.Context, id string) (domain.Challenge, error) {
	var (
		c                domain.Challenge
		created, expires int64
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT id, user_id, attempts, ip_address, user_agent, created_at, expires_at
		 FROM two_factor_challenges WHERE id = ? AND expires_at > ?`,
		id, toMillis(time.Now()),
	).Scan(&c.ID, &c.UserID, &c.Attempts, &c.IPAddress, &c.UserAgent, &created, &expires)
	if err != nil {
		return domain.Challenge{}, mapNotFound(err)
	}
	c.CreatedAt = fromMillis(created)
	c.ExpiresAt = fromMillis(expires)
	return c, nil
}

func (r *challengesRepo) IncrementChallengeAttempts(ctx context.Context, id string) (int, error) {
	var attempts int
	err := r.q.QueryRowContext(ctx,
		`UPDATE two_factor_challenges SET attempts = attempts + 1 WHERE id = ? RETURNING attempts`,
		id,
	).Scan(&attempts)
	if err != nil {
		return 0, mapNotFound(err)
	}
	return attempts, nil
}

func (r *challengesRepo) DeleteChallenge(ctx context.Context, id string) (bool, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM two_factor_challenges WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *challengesRepo) DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM two_factor_challenges WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
