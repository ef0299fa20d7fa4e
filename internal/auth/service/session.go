package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/starterkit/internal/auth/domain"
	"github.com/aussiebroadwan/starterkit/internal/auth/store"
	"github.com/aussiebroadwan/starterkit/pkg/httpx"
	"github.com/aussiebroadwan/starterkit/pkg/idx"
	"github.com/aussiebroadwan/starterkit/pkg/jwtx"
	"github.com/aussiebroadwan/starterkit/pkg/slogx"
)

// SessionService issues and tracks signed-in devices. Access tokens are
// bound to a session row and checked against it on every request.
type SessionService struct {
	Store  store.Store
	Signer jwtx.Signer
	Issuer string
	TTL    time.Duration
	Clock  func() time.Time
}

var _ httpx.SessionValidator = (*SessionService)(nil)

func (s *SessionService) now() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC()
	}
	return time.Now().UTC()
}

// Issue creates a session for u and signs its access token.
func (s *SessionService) Issue(ctx context.Context, tx store.Tx, u domain.User, amr []string, meta domain.ClientMeta) (domain.SessionToken, error) {
	now := s.now()
	repo := s.Store.Sessions()
	if tx != nil {
		repo = tx.Sessions()
	}

	sess := domain.Session{
		ID:        idx.NewAt(now).String(),
		UserID:    u.ID,
		AMR:       amr,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		CreatedAt: now,
		ExpiresAt: now.Add(s.TTL),
	}
	if err := repo.CreateSession(ctx, sess); err != nil {
		return domain.SessionToken{}, fmt.Errorf("create session: %w", err)
	}

	claims := jwtx.NewSessionClaims(u.ID, sess.ID, u.Email, s.Issuer, amr, s.TTL, now)
	token, err := s.Signer.Sign(claims)
	if err != nil {
		return domain.SessionToken{}, fmt.Errorf("sign access token: %w", err)
	}

	return domain.SessionToken{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.TTL.Seconds()),
		SessionID:   sess.ID,
	}, nil
}

// ValidateSession implements httpx.SessionValidator.
func (s *SessionService) ValidateSession(ctx context.Context, userID, sessionID string) error {
	sess, err := s.Store.Sessions().GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	if sess.UserID != userID || !sess.Active(s.now()) {
		return ErrSessionRevoked
	}
	return nil
}

// List returns the user's live sessions, marking currentSID.
func (s *SessionService) List(ctx context.Context, userID, currentSID string) ([]domain.SessionView, error) {
	sessions, err := s.Store.Sessions().ListActiveSessions(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}

	out := make([]domain.SessionView, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, domain.SessionView{
			ID:        sess.ID,
			IPAddress: sess.IPAddress,
			UserAgent: sess.UserAgent,
			CreatedAt: sess.CreatedAt,
			ExpiresAt: sess.ExpiresAt,
			Current:   sess.ID == currentSID,
		})
	}
	return out, nil
}

func (s *SessionService) Revoke(ctx context.Context, userID, sessionID string) error {
	err := s.Store.Sessions().RevokeSession(ctx, userID, sessionID, s.now())
	if errors.Is(err, store.ErrNotFound) {
		return ErrSessionNotFound
	}
	if err == nil {
		slogx.FromContext(ctx).Info("session revoked", "session_id", sessionID)
	}
	return err
}

// RevokeOthers signs out every session of the user except currentSID.
func (s *SessionService) RevokeOthers(ctx context.Context, userID, currentSID string) (int64, error) {
	n, err := s.Store.Sessions().RevokeOtherSessions(ctx, userID, currentSID, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slogx.FromContext(ctx).Warn("other sessions revoked", "count", n)
	}
	return n, nil
}

func (s *SessionService) SignOut(ctx context.Context, userID, sessionID string) error {
	return s.Revoke(ctx, userID, sessionID)
}
