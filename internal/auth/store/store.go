package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/starterkit/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Sub-repositories are exposed as
// methods so a Tx can hand out the same repos bound to the transaction.
type Store interface {
	Users() Users
	Sessions() Sessions
	TwoFactors() TwoFactors
	BackupCodes() BackupCodes
	Challenges() Challenges
	TrustedDevices() TrustedDevices

	ApplyMigrations() error

	// WithTx runs fn in a read/write transaction. It commits when fn returns
	// nil and rolls back otherwise. Repos reached through the outer Store must
	// not be used inside fn.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is the subset of Store available inside WithTx.
type Tx interface {
	Users() Users
	Sessions() Sessions
	TwoFactors() TwoFactors
	BackupCodes() BackupCodes
	Challenges() Challenges
	TrustedDevices() TrustedDevices
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail expects an already normalised (lower-case) email.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser returns ErrAlreadyExists when the email is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateImage sets or clears (nil) the avatar URL.
	UpdateImage(ctx context.Context, userID string, image *string) error

	// SetTwoFactorEnabled stamps or clears (nil) the activation time.
	SetTwoFactorEnabled(ctx context.Context, userID string, at *time.Time) error

	// DeleteUser cascades to every row owned by the user.
	DeleteUser(ctx context.Context, userID string) error
}

type Sessions interface {
	CreateSession(ctx context.Context, s domain.Session) error

	// GetSession returns the session whether or not it is still active.
	GetSession(ctx context.Context, id string) (domain.Session, error)

	// ListActiveSessions returns unrevoked, unexpired sessions, newest first.
	ListActiveSessions(ctx context.Context, userID string, now time.Time) ([]domain.Session, error)

	// RevokeSession returns ErrNotFound when the user owns no such active session.
	RevokeSession(ctx context.Context, userID, id string, at time.Time) error

	// RevokeOtherSessions revokes every session of the user except keepID.
	RevokeOtherSessions(ctx context.Context, userID, keepID string, at time.Time) (int64, error)

	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type TwoFactors interface {
	// UpsertTwoFactor replaces any existing seed for the user.
	UpsertTwoFactor(ctx context.Context, tf domain.TwoFactor) error

	GetTwoFactor(ctx context.Context, userID string) (domain.TwoFactor, error)

	DeleteTwoFactor(ctx context.Context, userID string) error
}

type BackupCodes interface {
	CreateBackupCode(ctx context.Context, c domain.BackupCode) error

	// ListBackupCodes returns the user's remaining codes in issue order.
	ListBackupCodes(ctx context.Context, userID string) ([]domain.BackupCode, error)

	// ConsumeBackupCode deletes the matching code and reports whether one
	// existed. Two concurrent calls with the same code cannot both succeed.
	ConsumeBackupCode(ctx context.Context, userID, codeHash string) (bool, error)

	DeleteAllBackupCodes(ctx context.Context, userID string) error
}

// Challenges may live outside the relational store (see drivers/redis), so
// callers must not rely on it sharing a transaction with the other repos.
type Challenges interface {
	CreateChallenge(ctx context.Context, c domain.Challenge) error

	// GetChallenge returns ErrNotFound for unknown or expired challenges.
	GetChallenge(ctx context.Context, id string) (domain.Challenge, error)

	// IncrementChallengeAttempts returns the new attempt count.
	IncrementChallengeAttempts(ctx context.Context, id string) (int, error)

	// DeleteChallenge reports whether the challenge existed. Only one of
	// several concurrent callers sees true, which makes redemption single use.
	DeleteChallenge(ctx context.Context, id string) (bool, error)

	DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error)
}

type TrustedDevices interface {
	CreateTrustedDevice(ctx context.Context, d domain.TrustedDevice) error

	// GetTrustedDevice returns ErrNotFound unless an unexpired device with
	// this token fingerprint belongs to the user.
	GetTrustedDevice(ctx context.Context, userID, tokenHash string, now time.Time) (domain.TrustedDevice, error)

	DeleteTrustedDevices(ctx context.Context, userID string) error

	DeleteExpiredTrustedDevices(ctx context.Context, now time.Time) (int64, error)
}
