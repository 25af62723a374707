package domain

import "time"

// TokenPair is returned after every successful authentication.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"` // "Bearer"
	ExpiresIn    int64  `json:"expiresIn"` // access token lifetime in seconds
}

// RefreshToken is one stored session. Only the fingerprint of the token is
// persisted.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string // base64url SHA-256
	ExpiresAt time.Time
	CreatedAt time.Time
}
