package domain

import "time"

type User struct {
	ID               string
	Email            string
	Name             string
	PasswordHash     string     // argon2 encoded, empty for accounts created without a password
	Image            *string    // public avatar URL (nullable)
	TwoFactorEnabled *time.Time // when two-factor was activated (nullable)
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (u User) HasPassword() bool { return u.PasswordHash != "" }

func (u User) IsTwoFactorEnabled() bool { return u.TwoFactorEnabled != nil }

// Profile is the account view returned to the owner.
type Profile struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	Image            *string   `json:"image"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	HasPassword      bool      `json:"has_password"`
	CreatedAt        time.Time `json:"created_at"`
}

func (u User) Profile() Profile {
	return Profile{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		Image:            u.Image,
		TwoFactorEnabled: u.IsTwoFactorEnabled(),
		HasPassword:      u.HasPassword(),
		CreatedAt:        u.CreatedAt,
	}
}
