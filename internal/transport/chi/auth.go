package chi

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/carscore/internal/logger"
)

// AnonymousIdentity is used when no identity can be established.
const AnonymousIdentity = "anonymous"

// UserIDHeader carries a caller-asserted identity when API keys are not configured.
const UserIDHeader = "X-User-ID"

// exemptPaths are routes that bypass authentication (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

type identityKey struct{}

// ContextWithIdentity stores the caller identity in the context.
func ContextWithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the caller identity, AnonymousIdentity when unset.
func IdentityFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(identityKey{}).(string); ok && id != "" {
		return id
	}
	return AnonymousIdentity
}

// IdentityMiddleware maps a Bearer API key to a stable identity key.
// With no keys configured the X-User-ID header is trusted instead.
func IdentityMiddleware(apiKeys map[string]string) func(http.Handler) http.Handler {
	identities := make(map[string]string, len(apiKeys))
	for k, id := range apiKeys {
		if k == "" {
			continue
		}
		if id == "" {
			id = k
		}
		identities[k] = id
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			identity := AnonymousIdentity
			if len(identities) == 0 {
				if h := strings.TrimSpace(r.Header.Get(UserIDHeader)); h != "" {
					identity = h
				}
			} else {
				auth := r.Header.Get("Authorization")
				if auth == "" {
					writeError(w, http.StatusUnauthorized, apiError{
						Stage: stageAuth, Code: codeUnauthorized, Message: "missing authorization header",
					})
					return
				}

				const bearerPrefix = "Bearer "
				if !strings.HasPrefix(auth, bearerPrefix) {
					writeError(w, http.StatusUnauthorized, apiError{
						Stage: stageAuth, Code: codeUnauthorized, Message: "authorization header must use Bearer scheme",
					})
					return
				}

				id, ok := identities[auth[len(bearerPrefix):]]
				if !ok {
					writeError(w, http.StatusUnauthorized, apiError{
						Stage: stageAuth, Code: codeUnauthorized, Message: "invalid api key",
					})
					return
				}
				identity = id
			}

			ctx := ContextWithIdentity(r.Context(), identity)
			ctx = logger.ContextWithLogger(ctx, logger.FromContext(ctx).With(zap.String("identity", identity)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
