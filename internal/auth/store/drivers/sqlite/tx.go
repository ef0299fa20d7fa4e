package sqlite

import "github.com/aussiebroadwan/starterkit/internal/auth/store"

// repos binds every repository to one querier, either the pool or a tx.
type repos struct {
	q querier
}

func (r repos) Users() store.Users                   { return &usersRepo{q: r.q} }
func (r repos) Sessions() store.Sessions             { return &sessionsRepo{q: r.q} }
func (r repos) TwoFactors() store.TwoFactors         { return &twoFactorsRepo{q: r.q} }
func (r repos) BackupCodes() store.BackupCodes       { return &backupCodesRepo{q: r.q} }
func (r repos) Challenges() store.Challenges         { return &challengesRepo{q: r.q} }
func (r repos) TrustedDevices() store.TrustedDevices { return &trustedDevicesRepo{q: r.q} }
