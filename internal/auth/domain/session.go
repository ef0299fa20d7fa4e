package domain

import "time"

// Session is a signed-in device. Access tokens carry its ID and stop working
// as soon as it is revoked.
type Session struct {
	ID        string
	UserID    string
	AMR       []string // how the session was authenticated
	IPAddress string
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

func (s Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// ClientMeta describes the caller a session or challenge is created for.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

// SessionToken is returned whenever a sign-in completes.
type SessionToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"` // seconds
	SessionID   string `json:"session_id"`
	DeviceToken string `json:"device_token,omitempty"` // only when the device was trusted
}

// SessionView is a session as listed to its owner.
type SessionView struct {
	ID        string    `json:"id"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Current   bool      `json:"current"`
}
