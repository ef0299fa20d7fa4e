package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/starterkit/internal/auth/domain"
	"github.com/aussiebroadwan/starterkit/internal/auth/store"
)

type usersRepo struct {
	q querier
}

const userColumns = `id, email, name, password_hash, image, two_factor_enabled, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var (
		u                domain.User
		image            sql.NullString
		enabled          sql.NullInt64
		created, updated int64
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &image, &enabled, &created, &updated); err != nil {
		return domain.User{}, mapNotFound(err)
	}
	if image.Valid {
		u.Image = &image.String
	}
	u.TwoFactorEnabled = fromNullMillis(enabled)
	u.CreatedAt = fromMillis(created)
	u.UpdatedAt = fromMillis(updated)
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	var image sql.NullString
	if u.Image != nil {
		image = sql.NullString{String: *u.Image, Valid: true}
	}

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.PasswordHash, image, toNullMillis(u.TwoFactorEnabled),
		toMillis(u.CreatedAt), toMillis(u.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *usersRepo) UpdateImage(ctx context.Context, userID string, image *string) error {
	var v sql.NullString
	if image != nil {
		v = sql.NullString{String: *image, Valid: true}
	}
	return requireOneRow(r.q.ExecContext(ctx,
		`UPDATE users SET image = ?, updated_at = ? WHERE id = ?`,
		v, toMillis(time.Now()), userID,
	))
}

func (r *usersRepo) SetTwoFactorEnabled(ctx context.Context, userID string, at *time.Time) error {
	return requireOneRow(r.q.ExecContext(ctx,
		`UPDATE users SET two_factor_enabled = ?, updated_at = ? WHERE id = ?`,
		toNullMillis(at), toMillis(time.Now()), userID,
	))
}

func (r *usersRepo) DeleteUser(ctx context.Context, userID string) error {
	return requireOneRow(r.q.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID))
}
