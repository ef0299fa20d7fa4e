package domain

import "time"

// TwoFactor holds a user's TOTP seed. It exists from the moment enrollment
// starts; User.TwoFactorEnabled says whether it has been confirmed.
type TwoFactor struct {
	UserID       string
	SecretSealed []byte // AES-GCM sealed base32 secret
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BackupCode is one single-use recovery code. The fingerprint is used for
// lookup, the sealed copy for showing the set back to its owner.
type BackupCode struct {
	ID         string
	UserID     string
	Position   int
	CodeHash   string
	CodeSealed []byte
	CreatedAt  time.Time
}

// Challenge is a pending second-factor check issued after a correct password.
type Challenge struct {
	ID        string // fingerprint of the opaque challenge token
	UserID    string
	Attempts  int
	IPAddress string
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// TrustedDevice exempts a device from challenges until it expires.
type TrustedDevice struct {
	ID        string
	UserID    string
	TokenHash string
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// EnableResult is handed back when enrollment starts.
type EnableResult struct {
	TOTPURI     string   `json:"totp_uri"`
	BackupCodes []string `json:"backup_codes"`
}

// ChallengeRequired is returned by sign-in instead of a session when a
// second factor is needed.
type ChallengeRequired struct {
	ChallengeToken string    `json:"challenge_token"`
	Methods        []string  `json:"methods"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Second factor methods offered in a challenge.
const (
	MethodTOTP       = "totp"
	MethodBackupCode = "backup_code"
)
