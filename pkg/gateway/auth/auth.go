/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package auth authenticates gateway requests by opaque API key and attaches
// the resolved identity to the request context.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/xavi-pinsach/prova/pkg/common/log"
	"github.com/xavi-pinsach/prova/pkg/gateway/identity"
	"github.com/xavi-pinsach/prova/pkg/gateway/metrics"
)

var logger = log.New("prova/auth")

// APIKeyHeader carries the opaque API key.
const APIKeyHeader = "X-API-Key"

// minKeyLength is the minimum accepted API key length. Anything shorter is
// rejected before the hash lookup.
const minKeyLength = 16

// publicPaths are fully public for all methods.
var publicPaths = []string{ //nolint:gochecknoglobals
	"/health",
	"/metrics",
	"/v1/provers",
	"/internal/api-keys/provision",
}

// publicGetPaths are public for GET requests only.
var publicGetPaths = []string{ //nolint:gochecknoglobals
	"/v1/vks",
}

type contextKey struct{}

// IdentityFromContext returns the identity attached by the middleware, if any.
func IdentityFromContext(ctx context.Context) (*identity.Identity, bool) {
	ident, ok := ctx.Value(contextKey{}).(*identity.Identity)

	return ident, ok
}

// ContextWithIdentity attaches an identity to the context. Exposed for tests
// exercising protected handlers directly.
func ContextWithIdentity(ctx context.Context, ident *identity.Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, ident)
}

// IsPublicPath classifies a route as public (authentication bypassed) or protected.
func IsPublicPath(path string, method string) bool {
	normalized := strings.TrimRight(path, "/")
	if normalized == "" {
		normalized = "/"
	}

	for _, public := range publicPaths {
		if normalized == public || strings.HasPrefix(normalized, public+"/") {
			return true
		}
	}

	if method == http.MethodGet {
		for _, public := range publicGetPaths {
			if normalized == public || strings.HasPrefix(normalized, public+"/") {
				return true
			}
		}
	}

	return false
}

// Authenticator resolves API keys to identities.
type Authenticator struct {
	identities *identity.Service
}

// NewAuthenticator returns an Authenticator over the given identity service.
func NewAuthenticator(identities *identity.Service) *Authenticator {
	return &Authenticator{identities: identities}
}

// Middleware enforces authentication on protected routes. On success the
// resolved identity is attached to the request context and the credential's
// last-used time is recorded best-effort in the background.
func (a *Authenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsPublicPath(r.URL.Path, r.Method) {
				next.ServeHTTP(w, r)

				return
			}

			apiKey := r.Header.Get(APIKeyHeader)
			if len(apiKey) < minKeyLength {
				unauthorized(w)

				return
			}

			keyHash := identity.HashKey(apiKey)

			ident, _, err := a.identities.LookupByKeyHash(keyHash)
			if err != nil {
				if !errors.Is(err, identity.ErrCredentialNotFound) {
					logger.Errorf("credential lookup failed: %s", err)
					internalError(w)

					return
				}

				unauthorized(w)

				return
			}

			go func() {
				if err := a.identities.TouchCredential(keyHash); err != nil {
					logger.Warnf("failed to update credential last-used time: %s", err)
				}
			}()

			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), ident)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	metrics.IncAuthFailure()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"Authentication required"}`))
}

func internalError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(`{"error":"Internal server error"}`))
}
