package http

import (
	"net/http"

	"github.com/aussiebroadwan/iworkcore/pkg/httpx"
	"github.com/aussiebroadwan/iworkcore/pkg/jwtx"
)

// JWKSHandler publishes the Ed25519 keys that verify access tokens.
func JWKSHandler(keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, keys.PublicJWKS())
	}
}
