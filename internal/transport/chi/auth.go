package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/docvec/internal/logger"
)

// apiKeyHeader is accepted as an alternative to the Authorization header.
const apiKeyHeader = "X-API-Key"

// APIKeyAuth returns a middleware that requires one of apiKeys, sent either as
// "Authorization: Bearer <key>" or as X-API-Key. Requests to the public paths pass.
// If apiKeys holds no non-empty key, authentication is disabled (pass-through).
func APIKeyAuth(apiKeys []string, public ...string) func(http.Handler) http.Handler {
	keys := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}
	open := make(map[string]struct{}, len(public))
	for _, p := range public {
		open[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := open[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			token, reason := credential(r)
			if reason == "" && !validToken(keys, token) {
				reason = "invalid api key"
			}
			if reason != "" {
				logpkg.FromContext(r.Context()).Warn("Request rejected",
					zap.String("reason", reason), zap.String("path", r.URL.Path))
				w.Header().Set("WWW-Authenticate", `Bearer realm="docvec"`)
				writeError(w, http.StatusUnauthorized, codeUnauthorized, reason)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// credential extracts the presented key. reason is non-empty when none is usable.
func credential(r *http.Request) (token, reason string) {
	if k := r.Header.Get(apiKeyHeader); k != "" {
		return k, ""
	}
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", "missing authorization header"
	}
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", "authorization header must use Bearer scheme"
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", "empty bearer token"
	}
	return token, ""
}

// validToken compares against every key in constant time.
func validToken(keys [][]byte, token string) bool {
	ok := 0
	for _, k := range keys {
		ok |= subtle.ConstantTimeCompare(k, []byte(token))
	}
	return ok == 1
}
