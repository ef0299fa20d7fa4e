package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/starterkit/internal/auth/domain"
	"github.com/aussiebroadwan/starterkit/internal/auth/notify"
	"github.com/aussiebroadwan/starterkit/internal/auth/store"
	"github.com/aussiebroadwan/starterkit/pkg/cryptox"
	"github.com/aussiebroadwan/starterkit/pkg/idx"
	"github.com/aussiebroadwan/starterkit/pkg/jwtx"
	"github.com/aussiebroadwan/starterkit/pkg/slogx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	DefaultMaxAttempts      = 5
	DefaultBackupCodeCount  = 10
	DefaultChallengeTTL     = 10 * time.Minute
	DefaultTrustedDeviceTTL = 30 * 24 * time.Hour

	totpPeriod = 30
	totpSkew   = 1
)

// TwoFactorService owns TOTP enrollment, backup codes, sign-in challenges
// and trusted devices.
type TwoFactorService struct {
	Store store.Store

	// Challenges overrides where sign-in challenges live (e.g. Redis). When
	// nil they are kept in Store and redeemed in the same transaction as the
	// session they produce.
	Challenges store.Challenges

	Sessions *SessionService
	Sealer   *cryptox.Sealer
	Notices  *Notices

	AppName          string
	ChallengeTTL     time.Duration
	TrustedDeviceTTL time.Duration
	MaxAttempts      int
	BackupCodeCount  int
	Clock            func() time.Time
}

func (s *TwoFactorService) now() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC()
	}
	return time.Now().UTC()
}

func (s *TwoFactorService) maxAttempts() int {
	if s.MaxAttempts > 0 {
		return s.MaxAttempts
	}
	return DefaultMaxAttempts
}

func (s *TwoFactorService) backupCodeCount() int {
	if s.BackupCodeCount > 0 {
		return s.BackupCodeCount
	}
	return DefaultBackupCodeCount
}

func (s *TwoFactorService) challengeTTL() time.Duration {
	if s.ChallengeTTL > 0 {
		return s.ChallengeTTL
	}
	return DefaultChallengeTTL
}

func (s *TwoFactorService) trustedDeviceTTL() time.Duration {
	if s.TrustedDeviceTTL > 0 {
		return s.TrustedDeviceTTL
	}
	return DefaultTrustedDeviceTTL
}

func (s *TwoFactorService) challenges() store.Challenges {
	if s.Challenges != nil {
		return s.Challenges
	}
	return s.Store.Challenges()
}

func (s *TwoFactorService) challengesIn(tx store.Tx) store.Challenges {
	if s.Challenges != nil {
		return s.Challenges
	}
	return tx.Challenges()
}

// Enable starts enrollment: it provisions a fresh secret and backup code set,
// replacing any earlier unconfirmed attempt. Two-factor stays off until
// VerifyEnrollment accepts a code.
func (s *TwoFactorService) Enable(ctx context.Context, userID, password, issuer string) (domain.EnableResult, error) {
	u, err := getUser(ctx, s.Store, userID)
	if err != nil {
		return domain.EnableResult{}, err
	}
	if err := checkPassword(u, password); err != nil {
		return domain.EnableResult{}, err
	}
	if u.IsTwoFactorEnabled() {
		return domain.EnableResult{}, ErrTwoFactorAlreadyEnabled
	}

	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		issuer = s.AppName
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: u.Email,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return domain.EnableResult{}, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	sealed, err := s.Sealer.SealString(key.Secret())
	if err != nil {
		return domain.EnableResult{}, fmt.Errorf("failed to seal TOTP secret: %w", err)
	}

	codes, err := cryptox.GenerateRecoveryCodes(s.backupCodeCount())
	if err != nil {
		return domain.EnableResult{}, fmt.Errorf("failed to generate backup codes: %w", err)
	}

	now := s.now()
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.TwoFactors().UpsertTwoFactor(ctx, domain.TwoFactor{
			UserID:       u.ID,
			SecretSealed: sealed,
			CreatedAt:    now,
			UpdatedAt:    now,
		}); err != nil {
			return fmt.Errorf("failed to store TOTP secret: %w", err)
		}
		return s.replaceBackupCodes(ctx, tx, u.ID, codes, now)
	})
	if err != nil {
		return domain.EnableResult{}, err
	}

	slogx.FromContext(ctx).Info("two-factor enrollment started", "user_id", u.ID)
	return domain.EnableResult{TOTPURI: key.URL(), BackupCodes: codes}, nil
}

// VerifyEnrollment checks a code against the pending (or active) secret and
// switches two-factor on the first time it succeeds.
func (s *TwoFactorService) VerifyEnrollment(ctx context.Context, userID, code string) error {
	u, err := getUser(ctx, s.Store, userID)
	if err != nil {
		return err
	}

	secret, err := s.secret(ctx, u.ID)
	if err != nil {
		return err
	}
	if !validTOTP(secret, code, s.now()) {
		slogx.FromContext(ctx).Warn("two-factor verification failed", "user_id", u.ID, "method", domain.MethodTOTP)
		return ErrInvalidTOTPCode
	}

	if u.IsTwoFactorEnabled() {
		return nil
	}

	now := s.now()
	if err := s.Store.Users().SetTwoFactorEnabled(ctx, u.ID, &now); err != nil {
		return fmt.Errorf("failed to enable two-factor: %w", err)
	}

	slogx.FromContext(ctx).Info("two-factor enabled", "user_id", u.ID)
	s.Notices.send(ctx, notify.NoticeTwoFactorEnabled, u, 0)
	return nil
}

// StartChallenge records a pending second-factor check for u and returns the
// opaque token the client must present with its code.
func (s *TwoFactorService) StartChallenge(ctx context.Context, u domain.User, meta domain.ClientMeta) (domain.ChallengeRequired, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.ChallengeRequired{}, err
	}

	now := s.now()
	c := domain.Challenge{
		ID:        cryptox.FingerprintToken(token),
		UserID:    u.ID,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		CreatedAt: now,
		ExpiresAt: now.Add(s.challengeTTL()),
	}
	if err := s.challenges().CreateChallenge(ctx, c); err != nil {
		return domain.ChallengeRequired{}, fmt.Errorf("failed to store challenge: %w", err)
	}

	return domain.ChallengeRequired{
		ChallengeToken: token,
		Methods:        []string{domain.MethodTOTP, domain.MethodBackupCode},
		ExpiresAt:      c.ExpiresAt,
	}, nil
}

// IsTrustedDevice reports whether deviceToken exempts the user from a challenge.
func (s *TwoFactorService) IsTrustedDevice(ctx context.Context, userID, deviceToken string) (bool, error) {
	deviceToken = strings.TrimSpace(deviceToken)
	if deviceToken == "" {
		return false, nil
	}
	_, err := s.Store.TrustedDevices().GetTrustedDevice(ctx, userID, cryptox.FingerprintToken(deviceToken), s.now())
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// VerifyChallengeTOTP completes a sign-in with an authenticator code. When
// trustDevice is set the returned token carries a device token that skips
// future challenges until it expires.
func (s *TwoFactorService) VerifyChallengeTOTP(
	ctx context.Context,
	challengeToken, code string,
	trustDevice bool,
	meta domain.ClientMeta,
) (domain.SessionToken, error) {
	c, u, err := s.openChallenge(ctx, challengeToken)
	if err != nil {
		return domain.SessionToken{}, err
	}

	secret, err := s.secret(ctx, u.ID)
	if err != nil {
		return domain.SessionToken{}, err
	}
	if !validTOTP(secret, code, s.now()) {
		s.recordFailure(ctx, c, domain.MethodTOTP)
		return domain.SessionToken{}, ErrInvalidTOTPCode
	}

	var tok domain.SessionToken
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := s.redeem(ctx, tx, c); err != nil {
			return err
		}

		var err error
		tok, err = s.Sessions.Issue(ctx, tx, u, []string{jwtx.AMRPassword, jwtx.AMROTP, jwtx.AMRMFA}, meta)
		if err != nil {
			return err
		}

		if trustDevice {
			tok.DeviceToken, err = s.trustDevice(ctx, tx, u.ID, meta)
		}
		return err
	})
	if err != nil {
		return domain.SessionToken{}, err
	}

	slogx.FromContext(ctx).Info("two-factor challenge passed",
		slog.String("user_id", u.ID),
		slog.String("method", domain.MethodTOTP),
		slog.Bool("trusted_device", trustDevice),
	)
	return tok, nil
}

// VerifyChallengeBackupCode completes a sign-in with a backup code. The code
// is consumed together with the challenge. A backup code never trusts the
// device; terminateOtherSessions signs out every other session of the user.
func (s *TwoFactorService) VerifyChallengeBackupCode(
	ctx context.Context,
	challengeToken, code string,
	terminateOtherSessions bool,
	meta domain.ClientMeta,
) (domain.SessionToken, error) {
	c, u, err := s.openChallenge(ctx, challengeToken)
	if err != nil {
		return domain.SessionToken{}, err
	}

	hash := cryptox.FingerprintToken(cryptox.NormalizeRecoveryCode(code))

	var (
		tok     domain.SessionToken
		revoked int64
	)
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		ok, err := tx.BackupCodes().ConsumeBackupCode(ctx, u.ID, hash)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidBackupCode
		}

		if err := s.redeem(ctx, tx, c); err != nil {
			return err
		}

		tok, err = s.Sessions.Issue(ctx, tx, u, []string{jwtx.AMRPassword, jwtx.AMRRecovery, jwtx.AMRMFA}, meta)
		if err != nil {
			return err
		}

		if terminateOtherSessions {
			revoked, err = tx.Sessions().RevokeOtherSessions(ctx, u.ID, tok.SessionID, s.now())
		}
		return err
	})
	if errors.Is(err, ErrInvalidBackupCode) {
		s.recordFailure(ctx, c, domain.MethodBackupCode)
		return domain.SessionToken{}, err
	}
	if err != nil {
		return domain.SessionToken{}, err
	}

	slogx.FromContext(ctx).Warn("backup code used to sign in",
		slog.String("user_id", u.ID),
		slog.Int64("sessions_revoked", revoked),
	)
	s.notifyBackupCodeUsed(ctx, u)
	return tok, nil
}

// VerifyBackupCode consumes a backup code for an already signed-in user.
func (s *TwoFactorService) VerifyBackupCode(ctx context.Context, userID, code string) error {
	u, err := s.enabledUser(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := s.Store.BackupCodes().ConsumeBackupCode(ctx, u.ID, cryptox.FingerprintToken(cryptox.NormalizeRecoveryCode(code)))
	if err != nil {
		return err
	}
	if !ok {
		slogx.FromContext(ctx).Warn("two-factor verification failed", "user_id", u.ID, "method", domain.MethodBackupCode)
		return ErrInvalidBackupCode
	}

	s.notifyBackupCodeUsed(ctx, u)
	return nil
}

// Disable turns two-factor off and forgets the secret, every backup code and
// every trusted device.
func (s *TwoFactorService) Disable(ctx context.Context, userID, password string) error {
	u, err := getUser(ctx, s.Store, userID)
	if err != nil {
		return err
	}
	if err := checkPassword(u, password); err != nil {
		return err
	}
	if !u.IsTwoFactorEnabled() {
		return ErrTwoFactorNotEnabled
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.TwoFactors().DeleteTwoFactor(ctx, u.ID); err != nil {
			return fmt.Errorf("failed to delete TOTP secret: %w", err)
		}
		if err := tx.BackupCodes().DeleteAllBackupCodes(ctx, u.ID); err != nil {
			return fmt.Errorf("failed to delete backup codes: %w", err)
		}
		if err := tx.TrustedDevices().DeleteTrustedDevices(ctx, u.ID); err != nil {
			return fmt.Errorf("failed to delete trusted devices: %w", err)
		}
		return tx.Users().SetTwoFactorEnabled(ctx, u.ID, nil)
	})
	if err != nil {
		return err
	}

	slogx.FromContext(ctx).Warn("two-factor disabled", "user_id", u.ID)
	s.Notices.send(ctx, notify.NoticeTwoFactorDisabled, u, 0)
	return nil
}

// RegenerateBackupCodes replaces the whole backup code set at once. Old codes
// stop working the moment this returns.
func (s *TwoFactorService) RegenerateBackupCodes(ctx context.Context, userID, password string) ([]string, error) {
	u, err := getUser(ctx, s.Store, userID)
	if err != nil {
		return nil, err
	}
	if err := checkPassword(u, password); err != nil {
		return nil, err
	}
	if !u.IsTwoFactorEnabled() {
		return nil, ErrTwoFactorNotEnabled
	}

	codes, err := cryptox.GenerateRecoveryCodes(s.backupCodeCount())
	if err != nil {
		return nil, fmt.Errorf("failed to generate backup codes: %w", err)
	}

	now := s.now()
	if err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		return s.replaceBackupCodes(ctx, tx, u.ID, codes, now)
	}); err != nil {
		return nil, err
	}

	slogx.FromContext(ctx).Info("backup codes regenerated", "user_id", u.ID)
	s.Notices.send(ctx, notify.NoticeBackupCodesRenewed, u, len(codes))
	return codes, nil
}

// ListBackupCodes returns the remaining codes in the order they were issued.
func (s *TwoFactorService) ListBackupCodes(ctx context.Context, userID string) ([]string, error) {
	u, err := s.enabledUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	rows, err := s.Store.BackupCodes().ListBackupCodes(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	codes := make([]string, 0, len(rows))
	for _, row := range rows {
		code, err := s.Sealer.OpenString(row.CodeSealed)
		if err != nil {
			return nil, fmt.Errorf("failed to open backup code: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, nil
}

func (s *TwoFactorService) enabledUser(ctx context.Context, userID string) (domain.User, error) {
	u, err := getUser(ctx, s.Store, userID)
	if err != nil {
		return domain.User{}, err
	}
	if !u.IsTwoFactorEnabled() {
		return domain.User{}, ErrTwoFactorNotEnabled
	}
	return u, nil
}

func (s *TwoFactorService) secret(ctx context.Context, userID string) (string, error) {
	tf, err := s.Store.TwoFactors().GetTwoFactor(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrTwoFactorNotEnrolled
		}
		return "", err
	}
	secret, err := s.Sealer.OpenString(tf.SecretSealed)
	if err != nil {
		return "", fmt.Errorf("failed to open TOTP secret: %w", err)
	}
	return secret, nil
}

func (s *TwoFactorService) replaceBackupCodes(ctx context.Context, tx store.Tx, userID string, codes []string, now time.Time) error {
	if err := tx.BackupCodes().DeleteAllBackupCodes(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete old backup codes: %w", err)
	}

	for i, code := range codes {
		sealed, err := s.Sealer.SealString(code)
		if err != nil {
			return err
		}
		if err := tx.BackupCodes().CreateBackupCode(ctx, domain.BackupCode{
			ID:         idx.NewAt(now).String(),
			UserID:     userID,
			Position:   i,
			CodeHash:   cryptox.FingerprintToken(code),
			CodeSealed: sealed,
			CreatedAt:  now,
		}); err != nil {
			return fmt.Errorf("failed to store backup code: %w", err)
		}
	}
	return nil
}

// openChallenge resolves a challenge token. Challenges that ran out of
// attempts are dropped here so the next sign-in starts from scratch.
func (s *TwoFactorService) openChallenge(ctx context.Context, token string) (domain.Challenge, domain.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Challenge{}, domain.User{}, ErrInvalidChallenge
	}

	c, err := s.challenges().GetChallenge(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Challenge{}, domain.User{}, ErrInvalidChallenge
		}
		return domain.Challenge{}, domain.User{}, err
	}

	if c.Attempts >= s.maxAttempts() {
		_, _ = s.challenges().DeleteChallenge(ctx, c.ID)
		slogx.FromContext(ctx).Warn("two-factor challenge exceeded max attempts", "user_id", c.UserID, "attempts", c.Attempts)
		return domain.Challenge{}, domain.User{}, ErrTooManyAttempts
	}

	u, err := s.enabledUser(ctx, c.UserID)
	if err != nil {
		// Two-factor was switched off (or the account removed) after the
		// challenge was issued.
		_, _ = s.challenges().DeleteChallenge(ctx, c.ID)
		if errors.Is(err, ErrTwoFactorNotEnabled) || errors.Is(err, ErrUserNotFound) {
			return domain.Challenge{}, domain.User{}, ErrInvalidChallenge
		}
		return domain.Challenge{}, domain.User{}, err
	}
	return c, u, nil
}

func (s *TwoFactorService) redeem(ctx context.Context, tx store.Tx, c domain.Challenge) error {
	ok, err := s.challengesIn(tx).DeleteChallenge(ctx, c.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidChallenge
	}
	return nil
}

func (s *TwoFactorService) recordFailure(ctx context.Context, c domain.Challenge, method string) {
	l := slogx.FromContext(ctx)

	attempts, err := s.challenges().IncrementChallengeAttempts(ctx, c.ID)
	if err != nil {
		l.Error("failed to increment challenge attempts", "err", err)
		return
	}
	l.Warn("two-factor challenge failed", "user_id", c.UserID, "method", method, "attempts", attempts)
}

func (s *TwoFactorService) trustDevice(ctx context.Context, tx store.Tx, userID string, meta domain.ClientMeta) (string, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}

	now := s.now()
	if err := tx.TrustedDevices().CreateTrustedDevice(ctx, domain.TrustedDevice{
		ID:        idx.NewAt(now).String(),
		UserID:    userID,
		TokenHash: cryptox.FingerprintToken(token),
		UserAgent: meta.UserAgent,
		CreatedAt: now,
		ExpiresAt: now.Add(s.trustedDeviceTTL()),
	}); err != nil {
		return "", fmt.Errorf("failed to trust device: %w", err)
	}
	return token, nil
}

func (s *TwoFactorService) notifyBackupCodeUsed(ctx context.Context, u domain.User) {
	remaining := 0
	if rows, err := s.Store.BackupCodes().ListBackupCodes(ctx, u.ID); err == nil {
		remaining = len(rows)
	}
	s.Notices.send(ctx, notify.NoticeBackupCodeUsed, u, remaining)
}

func validTOTP(secret, code string, now time.Time) bool {
	code = strings.ReplaceAll(strings.TrimSpace(code), " ", "")
	ok, err := totp.ValidateCustom(code, secret, now, totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
