package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/starterkit/internal/auth/domain"
)

type sessionsRepo struct {
	q querier
}

const sessionColumns = `id, user_id, amr, ip_address, user_agent, created_at, expires_at, revoked_at`

func scanSession(row interface{ Scan(...any) error }) (domain.Session, error) {
	var (
		s                domain.Session
		amr              string
		created, expires int64
		revoked          sql.NullInt64
	)
	if err := row.Scan(&s.ID, &s.UserID, &amr, &s.IPAddress, &s.UserAgent, &created, &expires, &revoked); err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	s.AMR = splitFields(amr)
	s.CreatedAt = fromMillis(created)
	s.ExpiresAt = fromMillis(expires)
	s.RevokedAt = fromNullMillis(revoked)
	return s, nil
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, joinFields(s.AMR), s.IPAddress, s.UserAgent,
		toMillis(s.CreatedAt), toMillis(s.ExpiresAt), toNullMillis(s.RevokedAt),
	)
	return err
}

func (r *sessionsRepo) GetSession(ctx context.Context, id string) (domain.Session, error) {
	return scanSession(r.q.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
}

func (r *sessionsRepo) ListActiveSessions(ctx context.Context, userID string, now time.Time) ([]domain.Session, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE user_id = ? AND revoked_at IS NULL AND expires_at > ?
		 ORDER BY created_at DESC, id DESC`,
		userID, toMillis(now),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *sessionsRepo) RevokeSession(ctx context.Context, userID, id string, at time.Time) error {
	return requireOneRow(r.q.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = ? WHERE id = ? AND user_id = ? AND revoked_at IS NULL`,
		toMillis(at), id, userID,
	))
}

func (r *sessionsRepo) RevokeOtherSessions(ctx context.Context, userID, keepID string, at time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = ? WHERE user_id = ? AND id <> ? AND revoked_at IS NULL`,
		toMillis(at), userID, keepID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteExpiredSessions drops expired sessions and revoked ones once their
// original expiry has also passed.
func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
