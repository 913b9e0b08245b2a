package auth

import (
	"net/http"
	"strings"

	"watering-cloud/internal/api/respond"
)

// Middleware validates dashboard session JWTs.
type Middleware struct {
	Secret []byte
	Policy Policy
}

// NewMiddleware constructs a session auth middleware.
func NewMiddleware(secret []byte, policy Policy) *Middleware {
	return &Middleware{Secret: secret, Policy: policy}
}

// Wrap applies session auth to the handler.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Policy.RequiresSession(r) {
			next.ServeHTTP(w, r)
			return
		}

		token := ExtractBearer(r)
		claims, err := ParseJWT(token, m.Secret)
		if err != nil {
			respond.Error(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), claims.Subject)))
	})
}

// ExtractBearer returns the bearer token from the Authorization header.
func ExtractBearer(r *http.Request) string {
	if r == nil {
		return ""
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
