package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/iworkcore/internal/identity/domain"
	"github.com/aussiebroadwan/iworkcore/internal/identity/metrics"
	"github.com/aussiebroadwan/iworkcore/internal/identity/store"
	"github.com/aussiebroadwan/iworkcore/pkg/cryptox"
	"github.com/aussiebroadwan/iworkcore/pkg/idx"
	"github.com/aussiebroadwan/iworkcore/pkg/jwtx"
	"github.com/aussiebroadwan/iworkcore/pkg/slogx"
)

const DefaultSignUpVerificationTTL = 24 * time.Hour

type SignUpInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	Phone       string
	InviteToken string
}

type SignUpResult struct {
	User   domain.User
	Tokens domain.TokenPair
}

// SignInResult carries either Tokens or, when the account has two-factor
// enabled, a TwoFactorToken to be exchanged by CompleteTwoFactorSignIn.
type SignInResult struct {
	User           domain.User
	Tokens         domain.TokenPair
	TwoFactorToken string
}

func (r SignInResult) TwoFactorRequired() bool { return r.TwoFactorToken != "" }

type SessionService struct {
	Store        store.Store
	Tokens       *TokenIssuer
	Verification *VerificationService
	TwoFactor    *TwoFactorService
	Metrics      *metrics.Metrics

	// VerificationTTL is the lifetime of the token sent on sign-up.
	VerificationTTL time.Duration
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// burnPasswordCheck spends the time of a real verification so unknown
// accounts cannot be told apart by latency.
func burnPasswordCheck(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = cryptox.HashPassword("iworkcore-dummy-password")
	})
	_ = cryptox.VerifyPassword(password, dummyHash)
}

// SignUp creates an account. Without an invitation the caller becomes the
// HR admin of a future company; with one they join the inviting company as
// staff.
func (s *SessionService) SignUp(ctx context.Context, in SignUpInput) (SignUpResult, error) {
	l := slogx.FromContext(ctx)
	now := time.Now()
	email := domain.NormalizeEmail(in.Email)

	result, err := s.signUp(ctx, in, email, now)
	if err != nil {
		s.Metrics.SignUp(metrics.ResultFailure)
		return SignUpResult{}, err
	}
	s.Metrics.SignUp(metrics.ResultSuccess)
	l.Info("user signed up", slog.String("user_id", result.User.ID), slog.String("role", string(result.User.Role)))
	return result, nil
}

func (s *SessionService) signUp(ctx context.Context, in SignUpInput, email string, now time.Time) (SignUpResult, error) {
	l := slogx.FromContext(ctx)

	if err := requireFields(map[string]string{
		"email":     email,
		"password":  in.Password,
		"firstName": in.FirstName,
		"lastName":  in.LastName,
	}); err != nil {
		return SignUpResult{}, err
	}

	// 1. Reject taken addresses before paying for a password hash
	if _, err := s.Store.Users().GetUserByEmail(ctx, email); err == nil {
		return SignUpResult{}, ErrDuplicateEmail
	} else if !errors.Is(err, store.ErrNotFound) {
		return SignUpResult{}, err
	}

	user := domain.User{
		ID:        idx.NewAt(now).String(),
		Email:     email,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Phone:     strings.TrimSpace(in.Phone),
		Role:      domain.RoleHR,
		Status:    domain.StatusActive,
	}

	// 2. Resolve the invitation, if any
	var invitation *domain.Invitation
	if in.InviteToken != "" {
		pending, err := s.Store.Invitations().ListPendingInvitations(ctx, email, now)
		if err != nil {
			return SignUpResult{}, err
		}
		i, err := RedeemSecureToken(in.InviteToken, pending, func(inv domain.Invitation) *domain.PendingToken {
			return &domain.PendingToken{Hash: inv.TokenHash, ExpiresAt: inv.ExpiresAt}
		}, now)
		if err != nil {
			return SignUpResult{}, ErrInvalidInvite
		}
		invitation = &pending[i]
		user.Role = domain.RoleStaff
		user.Status = domain.StatusPending
		user.CompanyID = invitation.CompanyID
	}

	// 3. Hash the password and mint the verification token
	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return SignUpResult{}, fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash

	verifyTTL := s.VerificationTTL
	if verifyTTL <= 0 {
		verifyTTL = DefaultSignUpVerificationTTL
	}
	verification, err := IssueSecureToken(verifyTTL, now)
	if err != nil {
		return SignUpResult{}, err
	}
	user.EmailVerification = verification.Pending()

	// 4. Persist the user and consume the invitation together
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrDuplicateEmail
			}
			return err
		}
		if invitation != nil {
			if err := tx.Invitations().AcceptInvitation(ctx, invitation.ID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return ErrInvalidInvite
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return SignUpResult{}, err
	}

	// 5. Sign the session; undo the account if that fails
	pair, err := s.Tokens.IssuePair(ctx, user, jwtx.AMRPassword)
	if err != nil {
		if rbErr := s.Store.Users().DeleteUser(ctx, user.ID); rbErr != nil {
			l.Error("failed to roll back sign-up", slog.String("user_id", user.ID), slog.Any("error", rbErr))
		}
		return SignUpResult{}, err
	}
	s.Metrics.TokensIssued("signup")

	// 6. Verification email goes out after everything else succeeded
	if s.Verification != nil {
		s.Verification.dispatch(ctx, user, verification.Plain, verifyTTL)
	}

	user.CreatedAt, user.UpdatedAt = now, now
	return SignUpResult{User: user, Tokens: pair}, nil
}

// SignIn checks a password. Unknown emails and wrong passwords are
// indistinguishable to the caller.
func (s *SessionService) SignIn(ctx context.Context, email, password string) (SignInResult, error) {
	res, err := s.signIn(ctx, domain.NormalizeEmail(email), password)
	if err != nil {
		s.Metrics.SignIn(metrics.ResultFailure)
		return SignInResult{}, err
	}
	s.Metrics.SignIn(metrics.ResultSuccess)
	return res, nil
}

func (s *SessionService) signIn(ctx context.Context, email, password string) (SignInResult, error) {
	l := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			burnPasswordCheck(password)
			return SignInResult{}, ErrInvalidCredentials
		}
		return SignInResult{}, err
	}

	if user.PasswordHash == "" {
		burnPasswordCheck(password)
		return SignInResult{}, ErrInvalidCredentials
	}
	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			l.Warn("stored password hash unusable", slog.String("user_id", user.ID), slog.Any("error", err))
		}
		return SignInResult{}, ErrInvalidCredentials
	}

	if user.Status == domain.StatusSuspended {
		l.Info("suspended user attempted sign-in", slog.String("user_id", user.ID))
		return SignInResult{}, ErrAccountSuspended
	}

	if user.TwoFactor.Enabled() {
		temp, err := s.Tokens.IssueTwoFactor(user)
		if err != nil {
			return SignInResult{}, fmt.Errorf("sign two-factor token: %w", err)
		}
		s.Metrics.TokensIssued("2fa_challenge")
		return SignInResult{User: user, TwoFactorToken: temp}, nil
	}

	pair, err := s.Tokens.IssuePair(ctx, user, jwtx.AMRPassword)
	if err != nil {
		return SignInResult{}, err
	}
	s.Metrics.TokensIssued("signin")
	return SignInResult{User: user, Tokens: pair}, nil
}

// CompleteTwoFactorSignIn exchanges the intermediate token from SignIn and
// a TOTP code for a full session.
func (s *SessionService) CompleteTwoFactorSignIn(ctx context.Context, tempToken, code string) (SignInResult, error) {
	l := slogx.FromContext(ctx)

	claims, err := verify(s.Tokens.AccessVerifier, tempToken, jwtx.PurposeTwoFactor)
	if err != nil {
		return SignInResult{}, ErrInvalidOrExpiredToken
	}

	user, err := s.Store.Users().GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return SignInResult{}, ErrInvalidOrExpiredToken
		}
		return SignInResult{}, err
	}
	if !user.TwoFactor.Enabled() {
		return SignInResult{}, ErrInvalidOrExpiredToken
	}
	if user.Status == domain.StatusSuspended {
		return SignInResult{}, ErrAccountSuspended
	}
	if !s.TwoFactor.VerifyCode(user, code) {
		l.Info("invalid two-factor code at sign-in", slog.String("user_id", user.ID))
		return SignInResult{}, ErrInvalidCode
	}

	pair, err := s.Tokens.IssuePair(ctx, user, jwtx.AMRPassword, jwtx.AMROTP)
	if err != nil {
		return SignInResult{}, err
	}
	s.Metrics.TokensIssued("2fa_signin")
	return SignInResult{User: user, Tokens: pair}, nil
}

// Refresh trades a stored, unexpired refresh token for a new pair. The
// presented token stays valid until it expires or is logged out.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	now := time.Now()

	claims, err := verify(s.Tokens.RefreshVerifier, refreshToken, jwtx.PurposeRefresh)
	if err != nil {
		return domain.TokenPair{}, ErrInvalidOrExpiredToken
	}

	user, err := s.Store.Users().GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, ErrInvalidOrExpiredToken
		}
		return domain.TokenPair{}, err
	}
	if user.Status == domain.StatusSuspended {
		return domain.TokenPair{}, ErrInvalidOrExpiredToken
	}

	fp := cryptox.FingerprintToken(refreshToken)
	if _, err := s.Store.RefreshTokens().GetRefreshToken(ctx, user.ID, fp, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, ErrInvalidOrExpiredToken
		}
		return domain.TokenPair{}, err
	}

	pair, err := s.Tokens.IssuePair(ctx, user, jwtx.AMRRefresh)
	if err != nil {
		return domain.TokenPair{}, err
	}
	s.Metrics.TokensIssued("refresh")
	return pair, nil
}

// Logout revokes one refresh token. Unknown tokens are ignored.
func (s *SessionService) Logout(ctx context.Context, userID, refreshToken string) error {
	return s.Store.RefreshTokens().DeleteRefreshToken(ctx, userID, cryptox.FingerprintToken(refreshToken))
}

// LogoutAll revokes every refresh token of the user.
func (s *SessionService) LogoutAll(ctx context.Context, userID string) error {
	return s.Store.RefreshTokens().DeleteUserRefreshTokens(ctx, userID)
}

// DeleteAccount removes the user and their sessions after re-checking the
// password.
func (s *SessionService) DeleteAccount(ctx context.Context, userID, password string) error {
	l := slogx.FromContext(ctx)

	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.PasswordHash == "" || cryptox.VerifyPassword(password, user.PasswordHash) != nil {
		return ErrIncorrectPassword
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().DeleteUserRefreshTokens(ctx, user.ID); err != nil {
			return err
		}
		return tx.Users().DeleteUser(ctx, user.ID)
	})
	if err != nil {
		return err
	}
	l.Info("account deleted", slog.String("user_id", user.ID))
	return nil
}

// CurrentUser loads the user behind an authenticated request.
func (s *SessionService) CurrentUser(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// Authenticate validates an access token and loads its user, so tokens of
// deleted accounts stop working before they expire.
func (s *SessionService) Authenticate(ctx context.Context, accessToken string) (domain.User, error) {
	claims, err := verify(s.Tokens.AccessVerifier, accessToken, jwtx.PurposeAccess)
	if err != nil {
		return domain.User{}, ErrInvalidOrExpiredToken
	}
	return s.CurrentUser(ctx, claims.Subject)
}
