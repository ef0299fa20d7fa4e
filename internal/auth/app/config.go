package app

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is read from AUTH_* environment variables, optionally seeded from a
// .env file in the working directory. Rate limit tiers are read by httpx
// from RATELIMIT_{STRICT,MODERATE,LENIENT}_{REQUESTS,WINDOW,BURST}.
type Config struct {
	AppName string `env:"APP_NAME" envDefault:"Starterkit"` // TOTP issuer label and notice sender name
	Issuer  string `env:"ISSUER" envDefault:"starterkit-auth"`

	Env                  string        `env:"ENV" envDefault:"dev"`
	LogLevel             string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat            string        `env:"LOG_FORMAT" envDefault:"json"`
	Port                 int           `env:"PORT" envDefault:"8080"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`

	DatabaseFile   string `env:"DATABASE_FILE" envDefault:"auth.db"`
	PepperFile     string `env:"PEPPER_FILE" envDefault:"pepper"`
	MasterKeyFile  string `env:"MASTER_KEY_FILE"`  // seals TOTP secrets and backup codes
	SigningKeyFile string `env:"SIGNING_KEY_FILE"` // Ed25519 PEM; generated when missing

	SessionTTL       time.Duration `env:"SESSION_TTL" envDefault:"168h"`
	ChallengeTTL     time.Duration `env:"CHALLENGE_TTL" envDefault:"10m"`
	TrustedDeviceTTL time.Duration `env:"TRUSTED_DEVICE_TTL" envDefault:"720h"`
	MaxAttempts      int           `env:"MAX_ATTEMPTS" envDefault:"5"`
	BackupCodeCount  int           `env:"BACKUP_CODE_COUNT" envDefault:"10"`

	Challenges ChallengeConfig `envPrefix:"CHALLENGES_"`
	Blob       BlobConfig      `envPrefix:"BLOB_"`
	SMTP       SMTPConfig      `envPrefix:"SMTP_"`
}

type ChallengeConfig struct {
	Backend  string `env:"BACKEND" envDefault:"sqlite"` // sqlite or redis
	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
}

type BlobConfig struct {
	Provider  string `env:"PROVIDER" envDefault:"local"` // local or s3
	LocalDir  string `env:"LOCAL_DIR" envDefault:"uploads"`
	LocalPath string `env:"LOCAL_PATH" envDefault:"/uploads"` // URL path local files are served under

	S3Endpoint  string `env:"S3_ENDPOINT" envDefault:"localhost:9000"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`
	S3Bucket    string `env:"S3_BUCKET" envDefault:"avatars"`
	S3Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	S3UseSSL    bool   `env:"S3_USE_SSL" envDefault:"false"`
	S3PublicURL string `env:"S3_PUBLIC_URL"`
}

// SMTPConfig enables mailed security notices when Host is set. Without it
// notices are only logged.
type SMTPConfig struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM" envDefault:"no-reply@localhost"`
	TLS      bool   `env:"TLS" envDefault:"true"`
}

// LoadConfig reads the configuration. A missing .env file is not an error.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()
	return parseConfig(nil)
}

// parseConfig reads AUTH_* variables from environment, or from the process
// environment when it is nil.
func parseConfig(environment map[string]string) (Config, error) {
	var cfg Config
	opts := env.Options{Prefix: "AUTH_", Environment: environment}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Challenges.Backend {
	case "sqlite", "redis":
	default:
		return fmt.Errorf("unknown challenge backend %q", c.Challenges.Backend)
	}
	switch c.Blob.Provider {
	case "local", "s3":
	default:
		return fmt.Errorf("unknown blob provider %q", c.Blob.Provider)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be positive, got %d", c.MaxAttempts)
	}
	if c.BackupCodeCount < 1 {
		return fmt.Errorf("backup code count must be positive, got %d", c.BackupCodeCount)
	}
	return nil
}
