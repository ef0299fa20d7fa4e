package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/starterkit/pkg/cryptox"
	"github.com/aussiebroadwan/starterkit/pkg/jwtx"
)

// verifierLeeway tolerates clock drift between replicas.
const verifierLeeway = 30 * time.Second

// InitAuthKeys loads the Ed25519 signing key and builds the matching key set
// and verifier.
//
// Without SigningKeyFile the key is generated at startup and lives only in
// memory, so every access token is invalidated by a restart. With it the key
// is read from the file, or generated and written there on first start.
func InitAuthKeys(cfg Config, logger *slog.Logger) (*jwtx.EdDSASigner, *jwtx.KeySet, jwtx.Verifier, error) {
	pemKey, err := cryptox.LoadOrGenerateEd25519Key(cfg.SigningKeyFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load signing key: %w", err)
	}

	signer, err := jwtx.NewSignerEdDSA("", pemKey)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to parse signing key: %w", err)
	}

	keys := jwtx.NewKeySet()
	keys.AddSigner(signer)
	verifier := jwtx.NewVerifierEdDSA(keys, cfg.Issuer, verifierLeeway)

	if cfg.SigningKeyFile == "" {
		logger.Warn("using an ephemeral signing key; all sessions end on restart", "kid", signer.KID())
	} else {
		logger.Info("signing key loaded", "kid", signer.KID(), "path", cfg.SigningKeyFile)
	}

	return signer, keys, verifier, nil
}
