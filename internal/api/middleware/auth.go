package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/kiranshivaraju/partscout/internal/api/response"
)

// OperatorAuth guards destructive endpoints with a single shared operator token whose
// bcrypt hash comes from configuration.
type OperatorAuth struct {
	hash []byte
}

// NewOperatorAuth creates the middleware. An empty hash rejects every request.
func NewOperatorAuth(tokenHash string) *OperatorAuth {
	return &OperatorAuth{hash: []byte(strings.TrimSpace(tokenHash))}
}

// Require validates the Bearer token against the operator hash.
func (a *OperatorAuth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(a.hash) == 0 {
			response.Error(w, http.StatusForbidden,
				"OPERATOR_DISABLED", "Operator endpoints are disabled", nil)
			return
		}

		token := extractBearerToken(r)
		if token == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid Authorization header", nil)
			return
		}

		if err := bcrypt.CompareHashAndPassword(a.hash, []byte(token)); err != nil {
			ip, _ := GetClientIP(r)
			slog.Warn("operator token rejected", "client_ip", ip, "path", r.URL.Path)
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid operator token", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
