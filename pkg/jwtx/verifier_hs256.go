package jwtx

import (
	"github.com/golang-jwt/jwt/v5"
)

// HS256Verifier validates tokens signed with a shared HMAC secret.
type HS256Verifier struct {
	secret []byte
	issuer string
	aud    []string
}

// NewVerifierHS256 creates a verifier for tokens signed by NewSignerHS256
// with the same secret.
func NewVerifierHS256(secret []byte, issuer string, aud []string) *HS256Verifier {
	return &HS256Verifier{secret: append([]byte(nil), secret...), issuer: issuer, aud: aud}
}

// Verify validates the JWT string and returns its parsed Claims.
func (v *HS256Verifier) Verify(tokenStr string) (Claims, error) {
	return parse(tokenStr, jwt.SigningMethodHS256.Alg(), v.issuer, v.aud, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
}
