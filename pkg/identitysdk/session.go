package identitysdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// expiryBuffer refreshes the access token this long before it expires.
const expiryBuffer = 30 * time.Second

var errNoRefreshToken = errors.New("identity: access token expired and no refresh token available")

// Session represents an authenticated session with automatic token refresh.
// All Session methods automatically handle token expiration and refresh when needed.
type Session struct {
	client *SDKClient

	mu           sync.RWMutex
	user         User
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

func newSession(client *SDKClient, user User, pair TokenPair) *Session {
	return &Session{
		client:       client,
		user:         user,
		accessToken:  pair.AccessToken,
		refreshToken: pair.RefreshToken,
		expiresAt:    time.Now().Add(time.Duration(pair.ExpiresIn)*time.Second - expiryBuffer),
	}
}

// User returns the account as of the last call that reported it.
func (s *Session) User() User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// AccessToken returns the current access token without checking expiration.
// For most use cases, prefer using the Session methods which handle refresh automatically.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the current refresh token.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// Refresh rotates the token pair now, regardless of expiry.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

// getValidToken returns a valid access token, automatically refreshing if expired.
func (s *Session) getValidToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if time.Now().Before(s.expiresAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have refreshed while we waited for the lock
	if time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}
	if err := s.refreshLocked(ctx); err != nil {
		return "", err
	}
	return s.accessToken, nil
}

func (s *Session) refreshLocked(ctx context.Context) error {
	if s.refreshToken == "" {
		return errNoRefreshToken
	}
	pair, err := s.client.Refresh(ctx, s.refreshToken)
	if err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}

	s.accessToken = pair.AccessToken
	s.refreshToken = pair.RefreshToken
	s.expiresAt = time.Now().Add(time.Duration(pair.ExpiresIn)*time.Second - expiryBuffer)
	return nil
}

// call performs an authenticated request with a valid access token.
func (s *Session) call(ctx context.Context, method, path string, body any, expectedStatus int, target any) (*envelope, error) {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return nil, err
	}
	return s.client.call(ctx, method, path, token, body, expectedStatus, target)
}

// clear drops the tokens after the server revoked them.
func (s *Session) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = ""
	s.refreshToken = ""
	s.expiresAt = time.Time{}
}

// Logout revokes this session's refresh token.
func (s *Session) Logout(ctx context.Context) error {
	body := map[string]string{"refreshToken": s.RefreshToken()}
	if _, err := s.call(ctx, http.MethodPost, "/auth/logout", body, http.StatusOK, nil); err != nil {
		return err
	}
	s.clear()
	return nil
}

// LogoutAll revokes every refresh token of the account.
func (s *Session) LogoutAll(ctx context.Context) error {
	if _, err := s.call(ctx, http.MethodPost, "/auth/logout-all", nil, http.StatusOK, nil); err != nil {
		return err
	}
	s.clear()
	return nil
}

// DeleteAccount permanently removes the account after checking password.
func (s *Session) DeleteAccount(ctx context.Context, password string) error {
	body := map[string]string{"password": password}
	if _, err := s.call(ctx, http.MethodDelete, "/auth/delete-account", body, http.StatusOK, nil); err != nil {
		return err
	}
	s.clear()
	return nil
}
