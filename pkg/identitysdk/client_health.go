package identitysdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/aussiebroadwan/iworkcore/pkg/jwtx"
)

// GetLiveness checks if the service is alive.
func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/livez")
}

// GetReadiness checks if the service is ready. A degraded service answers
// 503, returned as *APIError.
func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/readyz")
}

func (c *SDKClient) health(ctx context.Context, path string) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.getJSON(ctx, path, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// GetJWKS retrieves the public keys access tokens are signed with. It is
// only served when the service signs with EdDSA.
func (c *SDKClient) GetJWKS(ctx context.Context) (*jwtx.JWKS, error) {
	var jwks jwtx.JWKS
	if err := c.getJSON(ctx, "/.well-known/jwks.json", &jwks); err != nil {
		return nil, err
	}
	return &jwks, nil
}

// getJSON fetches an endpoint that answers with a bare JSON document
// instead of the response envelope.
func (c *SDKClient) getJSON(ctx context.Context, path string, target any) error {
	resp, err := c.doRequest(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return parseErrorResponse(resp, body)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
