package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := parseConfig(map[string]string{})
	require.NoError(t, err)

	require.Equal(t, "Starterkit", cfg.AppName)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, 7*24*time.Hour, cfg.SessionTTL)
	require.Equal(t, 10*time.Minute, cfg.ChallengeTTL)
	require.Equal(t, 30*24*time.Hour, cfg.TrustedDeviceTTL)
	require.Equal(t, 5, cfg.MaxAttempts)
	require.Equal(t, 10, cfg.BackupCodeCount)
	require.Equal(t, "sqlite", cfg.Challenges.Backend)
	require.Equal(t, "local", cfg.Blob.Provider)
	require.Empty(t, cfg.SMTP.Host)
}

func TestParseConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		env     map[string]string
		check   func(t *testing.T, cfg Config)
		wantErr bool
	}{
		{
			name: "overrides",
			env: map[string]string{
				"AUTH_PORT":                 "9090",
				"AUTH_MAX_ATTEMPTS":         "3",
				"AUTH_CHALLENGE_TTL":        "2m",
				"AUTH_CHALLENGES_BACKEND":   "redis",
				"AUTH_CHALLENGES_REDIS_URL": "redis://cache:6379/1",
				"AUTH_BLOB_PROVIDER":        "s3",
				"AUTH_BLOB_S3_BUCKET":       "faces",
				"AUTH_SMTP_HOST":            "smtp.example.com",
			},
			check: func(t *testing.T, cfg Config) {
				require.Equal(t, 9090, cfg.Port)
				require.Equal(t, 3, cfg.MaxAttempts)
				require.Equal(t, 2*time.Minute, cfg.ChallengeTTL)
				require.Equal(t, "redis", cfg.Challenges.Backend)
				require.Equal(t, "redis://cache:6379/1", cfg.Challenges.RedisURL)
				require.Equal(t, "s3", cfg.Blob.Provider)
				require.Equal(t, "faces", cfg.Blob.S3Bucket)
				require.Equal(t, "smtp.example.com", cfg.SMTP.Host)
			},
		},
		{
			name:  "unprefixed variables are ignored",
			env:   map[string]string{"PORT": "1234"},
			check: func(t *testing.T, cfg Config) { require.Equal(t, 8080, cfg.Port) },
		},
		{name: "unknown challenge backend", env: map[string]string{"AUTH_CHALLENGES_BACKEND": "memcached"}, wantErr: true},
		{name: "unknown blob provider", env: map[string]string{"AUTH_BLOB_PROVIDER": "ftp"}, wantErr: true},
		{name: "zero attempts", env: map[string]string{"AUTH_MAX_ATTEMPTS": "0"}, wantErr: true},
		{name: "bad duration", env: map[string]string{"AUTH_SESSION_TTL": "soon"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := parseConfig(tt.env)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}
