package service

import (
	"context"
	"net/url"
	"os"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/iworkcore/internal/identity/domain"
	"github.com/aussiebroadwan/iworkcore/internal/identity/mail"
	"github.com/aussiebroadwan/iworkcore/internal/identity/metrics"
	"github.com/aussiebroadwan/iworkcore/internal/identity/store"
	"github.com/aussiebroadwan/iworkcore/internal/identity/store/drivers/sqlite"
	"github.com/aussiebroadwan/iworkcore/pkg/cryptox"
	"github.com/aussiebroadwan/iworkcore/pkg/jwtx"
	"github.com/aussiebroadwan/iworkcore/pkg/slogx"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer    = "iworkcore-test"
	accessSecret  = "access-secret-0123456789abcdef0123"
	refreshSecret = "refresh-secret-0123456789abcdef012"
	testPassword  = "Sup3r$ecret"
	frontendURL   = "http://app.test"
)

func TestMain(m *testing.M) {
	cryptox.SetArgon2Params(cryptox.Argon2Params{
		Memory:      1024,
		Iterations:  1,
		Parallelism: 1,
		KeyLength:   32,
		SaltLength:  16,
	})
	os.Exit(m.Run())
}

// recordingMailer keeps every dispatched message.
type recordingMailer struct {
	mu   sync.Mutex
	msgs []mail.Message
}

func (r *recordingMailer) Dispatch(_ context.Context, msg mail.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recordingMailer) sent(tmpl mail.Template) []mail.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []mail.Message
	for _, m := range r.msgs {
		if m.Template == tmpl {
			out = append(out, m)
		}
	}
	return out
}

// lastToken pulls the plaintext token out of the most recent link sent
// with tmpl.
func (r *recordingMailer) lastToken(t *testing.T, tmpl mail.Template) string {
	t.Helper()
	msgs := r.sent(tmpl)
	require.NotEmpty(t, msgs, "no %s email sent", tmpl)

	u, err := url.Parse(msgs[len(msgs)-1].Data[mail.KeyLink])
	require.NoError(t, err)
	if tok := u.Query().Get("invite"); tok != "" {
		return tok
	}
	return path.Base(u.Path)
}

type fixture struct {
	store        *sqlite.Store
	mailer       *recordingMailer
	tokens       *TokenIssuer
	sessions     *SessionService
	resets       *PasswordResetService
	verification *VerificationService
	twoFactor    *TwoFactorService
	onboarding   *OnboardingService
	invitations  *InvitationService
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newTokenIssuer(t *testing.T, st store.Store) *TokenIssuer {
	t.Helper()
	access, err := jwtx.NewSignerHS256("access", []byte(accessSecret))
	require.NoError(t, err)
	refresh, err := jwtx.NewSignerHS256("refresh", []byte(refreshSecret))
	require.NoError(t, err)

	return &TokenIssuer{
		Store:            st,
		AccessSigner:     access,
		AccessVerifier:   jwtx.NewVerifierHS256([]byte(accessSecret), testIssuer, nil),
		RefreshSigner:    refresh,
		RefreshVerifier:  jwtx.NewVerifierHS256([]byte(refreshSecret), testIssuer, nil),
		Issuer:           testIssuer,
		AccessTTL:        jwtx.DefaultAccessTokenTTL,
		RefreshTTL:       jwtx.DefaultRefreshTokenTTL,
		TwoFactorTTL:     jwtx.DefaultTwoFactorTokenTTL,
		MaxRefreshTokens: DefaultMaxRefreshTokens,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := newTestStore(t)
	mailer := &recordingMailer{}
	links := Links{FrontendURL: frontendURL}
	tokens := newTokenIssuer(t, st)
	m := metrics.New()

	verification := &VerificationService{Store: st, Mailer: mailer, Links: links}
	twoFactor := &TwoFactorService{Store: st, Issuer: DefaultTOTPIssuer}

	return &fixture{
		store:        st,
		mailer:       mailer,
		tokens:       tokens,
		verification: verification,
		twoFactor:    twoFactor,
		sessions: &SessionService{
			Store:        st,
			Tokens:       tokens,
			Verification: verification,
			TwoFactor:    twoFactor,
			Metrics:      m,
		},
		resets:      &PasswordResetService{Store: st, Tokens: tokens, Mailer: mailer, Links: links},
		onboarding:  &OnboardingService{Store: st, Metrics: m},
		invitations: &InvitationService{Store: st, Mailer: mailer, Links: links},
	}
}

func (f *fixture) signUp(t *testing.T, email string) SignUpResult {
	t.Helper()
	res, err := f.sessions.SignUp(testContext(), SignUpInput{
		Email:     email,
		Password:  testPassword,
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	require.NoError(t, err)
	return res
}

// completeOnboarding gives the HR user a company.
func (f *fixture) completeOnboarding(t *testing.T, hrID string) CompleteResult {
	t.Helper()
	res, err := f.onboarding.Complete(testContext(), hrID, domain.CompanyProfile{
		Name:  "Acme",
		Email: "ops@acme.com",
	})
	require.NoError(t, err)
	return res
}

func testContext() context.Context {
	return slogx.WithContext(context.Background(), slogx.Discard())
}

// expire backdates every outstanding token of the user.
func expireUserTokens(t *testing.T, st store.Store, user domain.User) {
	t.Helper()
	ctx := context.Background()
	past := time.Now().Add(-time.Minute)

	current, err := st.Users().GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	if current.PasswordReset != nil {
		require.NoError(t, st.Users().SetPasswordReset(ctx, user.ID, domain.PendingToken{Hash: current.PasswordReset.Hash, ExpiresAt: past}))
	}
	if current.EmailVerification != nil {
		require.NoError(t, st.Users().SetEmailVerification(ctx, user.ID, domain.PendingToken{Hash: current.EmailVerification.Hash, ExpiresAt: past}))
	}
}
