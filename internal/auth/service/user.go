package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/aussiebroadwan/starterkit/internal/auth/domain"
	"github.com/aussiebroadwan/starterkit/internal/auth/notify"
	"github.com/aussiebroadwan/starterkit/internal/auth/store"
	"github.com/aussiebroadwan/starterkit/pkg/cryptox"
	"github.com/aussiebroadwan/starterkit/pkg/idx"
	"github.com/aussiebroadwan/starterkit/pkg/jwtx"
	"github.com/aussiebroadwan/starterkit/pkg/slogx"
)

const (
	MinPasswordLength = 8
	maxNameLength     = 100
)

type UserService struct {
	Store     store.Store
	Sessions  *SessionService
	TwoFactor *TwoFactorService
	Avatars   *AvatarService
	Notices   *Notices
}

// SignUp creates a password account and signs it in.
func (s *UserService) SignUp(ctx context.Context, email, name, password string, meta domain.ClientMeta) (domain.SessionToken, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return domain.SessionToken{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return domain.SessionToken{}, ErrInvalidRequest
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return domain.SessionToken{}, ErrWeakPassword
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.SessionToken{}, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	u := domain.User{
		ID:           idx.NewAt(now).String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var tok domain.SessionToken
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, u); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrEmailTaken
			}
			return err
		}
		tok, err = s.Sessions.Issue(ctx, tx, u, []string{jwtx.AMRPassword}, meta)
		return err
	})
	if err != nil {
		return domain.SessionToken{}, err
	}

	slogx.FromContext(ctx).Info("user signed up", "user_id", u.ID)
	return tok, nil
}

// SignIn checks the password and either issues a session or, when two-factor
// is on and the device is not trusted, returns a *ChallengeRequiredError.
func (s *UserService) SignIn(ctx context.Context, email, password, deviceToken string, meta domain.ClientMeta) (domain.SessionToken, error) {
	l := slogx.FromContext(ctx)

	email, err := normalizeEmail(email)
	if err != nil {
		return domain.SessionToken{}, ErrInvalidCredentials
	}

	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			burnPasswordCheck(password)
			return domain.SessionToken{}, ErrInvalidCredentials
		}
		return domain.SessionToken{}, err
	}
	if err := checkPassword(u, password); err != nil {
		l.Info("sign-in rejected", "user_id", u.ID)
		return domain.SessionToken{}, err
	}

	if u.IsTwoFactorEnabled() {
		trusted, err := s.TwoFactor.IsTrustedDevice(ctx, u.ID, deviceToken)
		if err != nil {
			return domain.SessionToken{}, err
		}
		if !trusted {
			challenge, err := s.TwoFactor.StartChallenge(ctx, u, meta)
			if err != nil {
				return domain.SessionToken{}, err
			}
			l.Info("two-factor challenge issued", "user_id", u.ID)
			return domain.SessionToken{}, &ChallengeRequiredError{Challenge: challenge}
		}
	}

	amr := []string{jwtx.AMRPassword}
	if u.IsTwoFactorEnabled() {
		// The trusted device stands in for the second factor.
		amr = append(amr, jwtx.AMRMFA)
	}
	return s.Sessions.Issue(ctx, nil, u, amr, meta)
}

func (s *UserService) GetUser(ctx context.Context, userID string) (domain.User, error) {
	return getUser(ctx, s.Store, userID)
}

// DeleteAccount removes the user and everything they own after checking the
// password again.
func (s *UserService) DeleteAccount(ctx context.Context, userID, password string) error {
	u, err := getUser(ctx, s.Store, userID)
	if err != nil {
		return err
	}
	if err := checkPassword(u, password); err != nil {
		return err
	}

	if err := s.Store.Users().DeleteUser(ctx, u.ID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if s.Avatars != nil && u.Image != nil {
		s.Avatars.removeBlob(ctx, *u.Image)
	}

	slogx.FromContext(ctx).Warn("account deleted", "user_id", u.ID)
	s.Notices.send(ctx, notify.NoticeAccountDeleted, u, 0)
	return nil
}

func getUser(ctx context.Context, st store.Store, userID string) (domain.User, error) {
	u, err := st.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return u, nil
}

// checkPassword re-verifies the account password. Accounts without one can
// never pass.
func checkPassword(u domain.User, password string) error {
	if !u.HasPassword() || password == "" {
		return ErrInvalidCredentials
	}
	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// burnPasswordCheck spends the same time as a real verification so unknown
// emails cannot be told apart by latency.
func burnPasswordCheck(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = cryptox.HashPassword("not-a-real-password")
	})
	if dummyHash != "" {
		_ = cryptox.VerifyPassword(password, dummyHash)
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidRequest
	}
	return email, nil
}
