package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// TokenAuth accepts requests bearing one of a fixed set of API tokens.
type TokenAuth struct {
	tokens         [][]byte
	allowAnonymous bool
	logger         *slog.Logger
}

func NewTokenAuth(tokens []string, allowAnonymous bool, logger *slog.Logger) *TokenAuth {
	if logger == nil {
		logger = slog.Default()
	}
	auth := &TokenAuth{allowAnonymous: allowAnonymous, logger: logger.With("component", "creditd.auth")}
	for _, token := range tokens {
		if trimmed := strings.TrimSpace(token); trimmed != "" {
			auth.tokens = append(auth.tokens, []byte(trimmed))
		}
	}
	return auth
}

func (a *TokenAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearer(r.Header.Get("Authorization"))
		if token == "" {
			if a.allowAnonymous {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		if !a.valid(token) {
			a.logger.Warn("rejected api token", "request_id", RequestIDFrom(r.Context()))
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *TokenAuth) valid(token string) bool {
	candidate := []byte(token)
	match := 0
	for _, known := range a.tokens {
		match |= subtle.ConstantTimeCompare(candidate, known)
	}
	return match == 1
}

func extractBearer(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
