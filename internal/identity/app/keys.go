package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/iworkcore/pkg/cryptox"
	"github.com/aussiebroadwan/iworkcore/pkg/jwtx"
)

// Keys holds the signers and verifiers for issued tokens. Access and
// two-factor tokens share the access key; refresh tokens always use their
// own HS256 secret.
type Keys struct {
	AccessSigner    jwtx.Signer
	AccessVerifier  jwtx.Verifier
	RefreshSigner   jwtx.Signer
	RefreshVerifier jwtx.Verifier

	// KeySet holds the published public keys. Nil with HS256.
	KeySet *jwtx.KeySet
}

var errSharedSecret = errors.New("JWT_SECRET and JWT_REFRESH_SECRET must differ")

// InitKeys builds the token keys for the configured algorithm.
//
// Algorithms:
//   - "HS256": access tokens are signed with JWT_SECRET.
//   - "EdDSA": access tokens are signed with the Ed25519 key in
//     JWT_SIGNING_KEY_FILE, created on first start, and published as a JWKS.
//
// Empty secrets are replaced with random ones so development works out of
// the box; every token then dies with the process.
func InitKeys(cfg Config, logger *slog.Logger) (Keys, error) {
	refreshSecret, err := secretOrEphemeral("JWT_REFRESH_SECRET", cfg.JWTRefreshSecret, logger)
	if err != nil {
		return Keys{}, err
	}
	refreshSigner, err := jwtx.NewSignerHS256("refresh", []byte(refreshSecret))
	if err != nil {
		return Keys{}, fmt.Errorf("JWT_REFRESH_SECRET: %w", err)
	}
	keys := Keys{
		RefreshSigner:   refreshSigner,
		RefreshVerifier: jwtx.NewVerifierHS256([]byte(refreshSecret), cfg.Issuer, nil),
	}

	switch cfg.Algorithm {
	case AlgorithmEdDSA:
		pemKey, err := cryptox.LoadOrCreateEd25519Key(cfg.SigningKeyFile)
		if err != nil {
			return Keys{}, fmt.Errorf("load signing key: %w", err)
		}
		kid := "ed25519-" + cryptox.FingerprintToken(string(pemKey))[:16]
		signer, err := jwtx.NewSignerEdDSA(kid, pemKey)
		if err != nil {
			return Keys{}, fmt.Errorf("JWT_SIGNING_KEY_FILE: %w", err)
		}
		keys.KeySet = jwtx.NewKeySet()
		if err := keys.KeySet.AddSigner(signer); err != nil {
			return Keys{}, fmt.Errorf("publish signing key: %w", err)
		}
		keys.AccessSigner = signer
		keys.AccessVerifier = jwtx.NewVerifierEdDSA(keys.KeySet, cfg.Issuer, nil)

		logger.Info("access tokens signed with EdDSA", "kid", kid, "key_file", cfg.SigningKeyFile)

	default:
		if cfg.JWTSecret != "" && cfg.JWTSecret == cfg.JWTRefreshSecret {
			return Keys{}, errSharedSecret
		}
		secret, err := secretOrEphemeral("JWT_SECRET", cfg.JWTSecret, logger)
		if err != nil {
			return Keys{}, err
		}
		signer, err := jwtx.NewSignerHS256("access", []byte(secret))
		if err != nil {
			return Keys{}, fmt.Errorf("JWT_SECRET: %w", err)
		}
		keys.AccessSigner = signer
		keys.AccessVerifier = jwtx.NewVerifierHS256([]byte(secret), cfg.Issuer, nil)

		logger.Info("access tokens signed with HS256")
	}

	return keys, nil
}

func secretOrEphemeral(name, value string, logger *slog.Logger) (string, error) {
	if value != "" {
		return value, nil
	}
	secret, err := cryptox.GenerateToken(jwtx.MinHS256SecretSize)
	if err != nil {
		return "", fmt.Errorf("generate %s: %w", name, err)
	}
	logger.Warn("secret not configured, generated an ephemeral one; tokens will not survive a restart", "var", name)
	return secret, nil
}
