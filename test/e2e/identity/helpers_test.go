package identity_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/url"
	"os"
	"os/exec"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aussiebroadwan/iworkcore/pkg/identitysdk"
)

/*
 * Common constants and helper functions for identity service end-to-end
 * tests: image build, container setup and reading emailed links from the
 * container log.
 */

const (
	testImageName = "iworkcore-identity-test:latest"

	testPassword = "Sup3r$ecret"
	frontendURL  = "http://app.test"
)

// TestMain builds the Docker image once before all tests and removes it
// after they complete.
func TestMain(m *testing.M) {
	fmt.Fprintf(os.Stdout, "Building Identity Service Docker image...")

	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Cleaning up Identity Service Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

func buildDockerImage() error {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/identity/Dockerfile",
		"../../../")
	cmd.Stdout = os.Stdout
	cmd.Stderr = nil

	return cmd.Run()
}

func cleanupDockerImage() {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "rmi", "-f", testImageName)
	_ = cmd.Run() // Ignore errors - image might not exist
}

// baseEnv configures the service the way every test expects: EdDSA keys,
// JSON logs (read back by emailedToken) and no SMTP server.
func baseEnv() map[string]string {
	return map[string]string{
		"ENV":             "test",
		"LOG_LEVEL":       "info",
		"LOG_FORMAT":      "json",
		"JWT_ALGORITHM":   "EdDSA",
		"IDENTITY_ISSUER": "iworkcore-e2e",
		"FRONTEND_URL":    frontendURL,
	}
}

// relaxedRateLimits keeps rapid test traffic clear of the production limits.
func relaxedRateLimits() map[string]string {
	env := map[string]string{}
	for _, profile := range []string{"STRICT", "MODERATE", "LENIENT"} {
		env["RATELIMIT_"+profile+"_REQUESTS"] = "1000"
		env["RATELIMIT_"+profile+"_WINDOW"] = "1m"
		env["RATELIMIT_"+profile+"_BURST"] = "1000"
	}
	return env
}

type identityService struct {
	container testcontainers.Container
	client    *identitysdk.SDKClient
}

// setupIdentityContainer starts the service with relaxed rate limits.
func setupIdentityContainer(t *testing.T) *identityService {
	t.Helper()
	env := baseEnv()
	maps.Copy(env, relaxedRateLimits())
	return startContainer(t, env)
}

// setupIdentityContainerWithDefaultRateLimits starts the service with the
// production limits, for tests that exercise rate limiting itself.
func setupIdentityContainerWithDefaultRateLimits(t *testing.T) *identityService {
	t.Helper()
	return startContainer(t, baseEnv())
}

func startContainer(t *testing.T, env map[string]string) *identityService {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        testImageName,
		ExposedPorts: []string{"8080/tcp"},
		Env:          env,
		WaitingFor: wait.ForHTTP("/livez").
			WithPort("8080/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)
	host, err := container.Host(ctx)
	require.NoError(t, err)

	return &identityService{
		container: container,
		client:    identitysdk.NewSDKClient(fmt.Sprintf("http://%s:%s", host, mappedPort.Port())),
	}
}

// emailedToken waits for the log sender to record an email of tmpl to
// recipient and returns the token in its link.
func (s *identityService) emailedToken(t *testing.T, tmpl, recipient string) string {
	t.Helper()

	var token string
	require.Eventually(t, func() bool {
		token = s.lastLoggedToken(t, tmpl, recipient)
		return token != ""
	}, 5*time.Second, 100*time.Millisecond, "no %s email logged for %s", tmpl, recipient)
	return token
}

func (s *identityService) lastLoggedToken(t *testing.T, tmpl, recipient string) string {
	t.Helper()

	logs, err := s.container.Logs(context.Background())
	require.NoError(t, err)
	defer logs.Close()

	var token string
	scanner := bufio.NewScanner(logs)
	for scanner.Scan() {
		var entry struct {
			Msg      string `json:"msg"`
			To       string `json:"to"`
			Template string `json:"template"`
			Link     string `json:"link"`
		}
		line := scanner.Bytes()
		// Skip the docker stream header and any non-JSON output
		if i := bytes.IndexByte(line, '{'); i >= 0 {
			line = line[i:]
		}
		if json.Unmarshal(line, &entry) != nil {
			continue
		}
		if entry.Template != tmpl || entry.To != recipient || entry.Link == "" {
			continue
		}

		u, err := url.Parse(entry.Link)
		require.NoError(t, err)
		if invite := u.Query().Get("invite"); invite != "" {
			token = invite
		} else {
			token = path.Base(u.Path)
		}
	}
	require.NoError(t, scanner.Err())
	return token
}

func signUpRequest(email string) identitysdk.SignUpRequest {
	return identitysdk.SignUpRequest{
		Email:           email,
		Password:        testPassword,
		ConfirmPassword: testPassword,
		FirstName:       "Ada",
		LastName:        "Lovelace",
	}
}

// verifiedHR signs up an HR admin and follows the emailed verification link.
func (s *identityService) verifiedHR(t *testing.T, email string) *identitysdk.Session {
	t.Helper()
	ctx := context.Background()

	session, err := s.client.SignUp(ctx, signUpRequest(email))
	require.NoError(t, err)
	require.Equal(t, "hr", session.User().Role)

	user, err := s.client.VerifyEmail(ctx, s.emailedToken(t, "email_verification", email))
	require.NoError(t, err)
	require.True(t, user.EmailVerified)

	return session
}
