package app

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/aussiebroadwan/iworkcore/pkg/httpx"
)

const (
	AlgorithmHS256 = "HS256"
	AlgorithmEdDSA = "EdDSA"
)

type Config struct {
	Port                 int           `env:"PORT"                  envDefault:"8080"`
	Env                  string        `env:"ENV"                   envDefault:"dev"`  // dev, staging, prod
	LogLevel             string        `env:"LOG_LEVEL"             envDefault:"info"` // debug, info, warn, error
	LogFormat            string        `env:"LOG_FORMAT"            envDefault:"json"` // json, text
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`
	MetricsEnabled       bool          `env:"METRICS_ENABLED"       envDefault:"true"`

	Issuer       string `env:"IDENTITY_ISSUER"        envDefault:"iworkcore-identity"`
	DatabaseFile string `env:"IDENTITY_DATABASE_FILE" envDefault:"identity.db"`
	PepperFile   string `env:"IDENTITY_PEPPER_FILE"   envDefault:"pepper"`

	// Algorithm is HS256 (shared secrets) or EdDSA (Ed25519 key for access
	// tokens, published at /.well-known/jwks.json).
	Algorithm        string `env:"JWT_ALGORITHM"        envDefault:"HS256"`
	JWTSecret        string `env:"JWT_SECRET"`
	JWTRefreshSecret string `env:"JWT_REFRESH_SECRET"`
	SigningKeyFile   string `env:"JWT_SIGNING_KEY_FILE" envDefault:"signing.pem"`

	AccessTTL             time.Duration `env:"JWT_ACCESS_TTL"          envDefault:"15m"`
	RefreshTTL            time.Duration `env:"JWT_REFRESH_TTL"         envDefault:"168h"`
	TwoFactorTokenTTL     time.Duration `env:"TWO_FACTOR_TOKEN_TTL"    envDefault:"5m"`
	PasswordResetTTL      time.Duration `env:"PASSWORD_RESET_TTL"      envDefault:"15m"`
	EmailVerificationTTL  time.Duration `env:"EMAIL_VERIFICATION_TTL"  envDefault:"60m"`
	SignUpVerificationTTL time.Duration `env:"SIGNUP_VERIFICATION_TTL" envDefault:"24h"`
	InvitationTTL         time.Duration `env:"INVITATION_TTL"          envDefault:"168h"`
	MaxRefreshTokens      int           `env:"MAX_REFRESH_TOKENS"      envDefault:"10"`

	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	// CORSOrigins defaults to FrontendURL.
	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	TOTPIssuer  string   `env:"TOTP_ISSUER"          envDefault:"iWorkCore"`

	Mail MailConfig

	RateLimits httpx.RateLimits `envPrefix:"RATELIMIT_"`
}

// MailConfig selects how email leaves the process. Without SMTP_HOST
// messages are only logged.
type MailConfig struct {
	From         string `env:"MAIL_FROM"       envDefault:"iWorkCore HR <no-reply@iworkcore.local>"`
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT"       envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	// RedisURL switches the in-process queue for a Redis list shared by
	// every replica.
	RedisURL  string `env:"MAIL_REDIS_URL"`
	Workers   int    `env:"MAIL_WORKERS"    envDefault:"5"`
	QueueSize int    `env:"MAIL_QUEUE_SIZE" envDefault:"100"`
	// RatePerSecond caps in-process deliveries. Zero disables pacing.
	RatePerSecond float64 `env:"MAIL_RATE_PER_SECOND" envDefault:"10"`
}

// LoadConfig reads an optional .env file and then the environment.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{RateLimits: httpx.DefaultRateLimits()}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{cfg.FrontendURL}
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	switch c.Algorithm {
	case AlgorithmHS256, AlgorithmEdDSA:
	default:
		errs = append(errs, fmt.Errorf("JWT_ALGORITHM must be %s or %s, got %q", AlgorithmHS256, AlgorithmEdDSA, c.Algorithm))
	}
	for name, d := range map[string]time.Duration{
		"JWT_ACCESS_TTL":          c.AccessTTL,
		"JWT_REFRESH_TTL":         c.RefreshTTL,
		"TWO_FACTOR_TOKEN_TTL":    c.TwoFactorTokenTTL,
		"PASSWORD_RESET_TTL":      c.PasswordResetTTL,
		"EMAIL_VERIFICATION_TTL":  c.EmailVerificationTTL,
		"SIGNUP_VERIFICATION_TTL": c.SignUpVerificationTTL,
		"INVITATION_TTL":          c.InvitationTTL,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.MaxRefreshTokens < 1 {
		errs = append(errs, errors.New("MAX_REFRESH_TOKENS must be at least 1"))
	}
	if !strings.HasPrefix(c.FrontendURL, "http://") && !strings.HasPrefix(c.FrontendURL, "https://") {
		errs = append(errs, fmt.Errorf("FRONTEND_URL must be an http(s) URL, got %q", c.FrontendURL))
	}
	// The log sender prints reset and verification links
	if c.Env == "prod" && c.Mail.SMTPHost == "" {
		errs = append(errs, errors.New("SMTP_HOST is required when ENV=prod"))
	}
	return errors.Join(errs...)
}

// IsDev reports whether the process runs in development mode.
func (c Config) IsDev() bool { return c.Env == "dev" }
