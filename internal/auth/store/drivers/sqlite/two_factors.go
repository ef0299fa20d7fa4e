package sqlite

import (
	"context"

	"github.com/aussiebroadwan/starterkit/internal/auth/domain"
)

type twoFactorsRepo struct {
	q querier
}

func (r *twoFactorsRepo) UpsertTwoFactor(ctx context.Context, tf domain.TwoFactor) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO two_factors (user_id, secret_sealed, created_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
		     secret_sealed = excluded.secret_sealed,
		     updated_at    = excluded.updated_at`,
		tf.UserID, tf.SecretSealed, toMillis(tf.CreatedAt), toMillis(tf.UpdatedAt),
	)
	return err
}

func (r *twoFactorsRepo) GetTwoFactor(ctx context.Context, userID string) (domain.TwoFactor, error) {
	var (
		tf               domain.TwoFactor
		created, updated int64
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT user_id, secret_sealed, created_at, updated_at FROM two_factors WHERE user_id = ?`,
		userID,
	).Scan(&tf.UserID, &tf.SecretSealed, &created, &updated)
	if err != nil {
		return domain.TwoFactor{}, mapNotFound(err)
	}
	tf.CreatedAt = fromMillis(created)
	tf.UpdatedAt = fromMillis(updated)
	return tf, nil
}

func (r *twoFactorsRepo) DeleteTwoFactor(ctx context.Context, userID string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM two_factors WHERE user_id = ?`, userID)
	return err
}
