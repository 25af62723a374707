package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
)

// Token sizes in bytes before encoding.
const (
	// TokenSize128 provides 128 bits of entropy (22 chars base64url).
	TokenSize128 = 16
	// TokenSize256 provides 256 bits of entropy (43 chars base64url).
	TokenSize256 = 32
)

const secureTokenSaltSize = 16

// GenerateToken returns size random bytes encoded as unpadded base64url.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// FingerprintToken returns a deterministic SHA-256 fingerprint (43 chars
// base64url). Used where a token must be looked up by value, such as refresh
// token rows.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// HashSecureToken returns a salted one-way hash of token in the form
// "<salt>$<digest>", both base64url. The same token hashes differently on
// every call, so stored values cannot be matched by lookup, only by
// VerifySecureToken.
func HashSecureToken(token string) (string, error) {
	salt := make([]byte, secureTokenSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate token salt: %w", err)
	}
	digest := saltedDigest(salt, token)
	return base64.RawURLEncoding.EncodeToString(salt) + "$" +
		base64.RawURLEncoding.EncodeToString(digest[:]), nil
}

// VerifySecureToken reports whether token produced the stored hash. The
// digest comparison is constant time; malformed hashes never match.
func VerifySecureToken(token, stored string) bool {
	saltPart, digestPart, ok := strings.Cut(stored, "$")
	if !ok {
		return false
	}
	salt, err := base64.RawURLEncoding.DecodeString(saltPart)
	if err != nil || len(salt) != secureTokenSaltSize {
		return false
	}
	want, err := base64.RawURLEncoding.DecodeString(digestPart)
	if err != nil || len(want) != sha256.Size {
		return false
	}

	got := saltedDigest(salt, token)
	return subtle.ConstantTimeCompare(got[:], want) == 1
}

func saltedDigest(salt []byte, token string) [sha256.Size]byte {
	buf := make([]byte, 0, len(salt)+len(token))
	buf = append(buf, salt...)
	buf = append(buf, token...)
	return sha256.Sum256(buf)
}
