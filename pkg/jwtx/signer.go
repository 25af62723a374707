package jwtx

// Signer is anything that can sign JWTs.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
	Validate() error
}

// PublicSigner is a Signer whose verification key may be published in a JWKS.
type PublicSigner interface {
	Signer
	PublicJWK() JWK
}

// NewSignerHS256 creates an HMAC-SHA256 signer from a shared secret.
func NewSignerHS256(kid string, secret []byte) (Signer, error) {
	s, err := newHS256Signer(kid, secret)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewSignerEdDSA creates an EdDSA signer from PEM bytes.
// Ed25519 keys must be in PKCS8 format.
func NewSignerEdDSA(kid string, pemKey []byte) (PublicSigner, error) {
	s, err := newEdDSASigner(kid, pemKey)
	if err != nil {
		return nil, err
	}
	return s, nil
}
