package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/starterkit/internal/auth/domain"
)

type trustedDevicesRepo struct {
	q querier
}

func (r *trustedDevicesRepo) CreateTrustedDevice(ctx context.Context, d domain.TrustedDevice) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO trusted_devices (id, user_id, token_hash, user_agent, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.UserID, d.TokenHash, d.UserAgent, toMillis(d.CreatedAt), toMillis(d.ExpiresAt),
	)
	return err
}

func (r *trustedDevicesRepo) GetTrustedDevice(ctx context.Context, userID, tokenHash string, now time.Time) (domain.TrustedDevice, error) {
	var (
		d                domain.TrustedDevice
		created, expires int64
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, user_agent, created_at, expires_at
		 FROM trusted_devices WHERE user_id = ? AND token_hash = ? AND expires_at > ?`,
		userID, tokenHash, toMillis(now),
	).Scan(&d.ID, &d.UserID, &d.TokenHash, &d.UserAgent, &created, &expires)
	if err != nil {
		return domain.TrustedDevice{}, mapNotFound(err)
	}
	d.CreatedAt = fromMillis(created)
	d.ExpiresAt = fromMillis(expires)
	return d, nil
}

func (r *trustedDevicesRepo) DeleteTrustedDevices(ctx context.Context, userID string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM trusted_devices WHERE user_id = ?`, userID)
	return err
}

func (r *trustedDevicesRepo) DeleteExpiredTrustedDevices(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM trusted_devices WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
