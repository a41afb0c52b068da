package mcp

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

const defaultMCPMaxBodyBytes int64 = 256 << 10

// HTTPHandlerConfig guards the streamable HTTP transport.
type HTTPHandlerConfig struct {
	AuthToken       string
	RateLimitPerMin int
	MaxBodyBytes    int64
}

// Requests pass bearer auth, then the per-client rate limit, then the
// body limit.
func wrapHTTPHandler(base http.Handler, cfg HTTPHandlerConfig) http.Handler {
	h := limitBody(base, cfg.MaxBodyBytes)
	h = newClientLimiter(cfg.RateLimitPerMin).middleware(h)
	return requireBearer(h, cfg.AuthToken)
}

func bearerToken(r *http.Request) (string, bool) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	token, ok := strings.CutPrefix(authz, "Bearer ")
	return strings.TrimSpace(token), ok
}

func requireBearer(next http.Handler, want string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := bearerToken(r)
		switch {
		case !ok:
			writeJSONError(w, http.StatusUnauthorized, "missing bearer token")
		case want == "" || got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1:
			writeJSONError(w, http.StatusForbidden, "invalid bearer token")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func limitBody(next http.Handler, limit int64) http.Handler {
	if limit <= 0 {
		limit = defaultMCPMaxBodyBytes
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
