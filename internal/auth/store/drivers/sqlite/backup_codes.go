package sqlite

import (
	"context"

	"github.com/aussiebroadwan/starterkit/internal/auth/domain"
)

type backupCodesRepo struct {
	q querier
}

func (r *backupCodesRepo) CreateBackupCode(ctx context.Context, c domain.BackupCode) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO backup_codes (id, user_id, position, code_hash, code_sealed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Position, c.CodeHash, c.CodeSealed, toMillis(c.CreatedAt),
	)
	return err
}

func (r *backupCodesRepo) ListBackupCodes(ctx context.Context, userID string) ([]domain.BackupCode, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, user_id, position, code_hash, code_sealed, created_at
		 FROM backup_codes WHERE user_id = ? ORDER BY position`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BackupCode
	for rows.Next() {
		var (
			c       domain.BackupCode
			created int64
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.Position, &c.CodeHash, &c.CodeSealed, &created); err != nil {
			return nil, err
		}
		c.CreatedAt = fromMillis(created)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *backupCodesRepo) ConsumeBackupCode(ctx context.Context, userID, codeHash string) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM backup_codes WHERE user_id = ? AND code_hash = ?`,
		userID, codeHash,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *backupCodesRepo) DeleteAllBackupCodes(ctx context.Context, userID string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM backup_codes WHERE user_id = ?`, userID)
	return err
}
