package auth

import (
	"errors"
	"net/http"

	"watering-cloud/internal/api/respond"
	registry "watering-cloud/internal/registry/domain"
)

// SessionOrDeviceMiddleware authenticates endpoints shared by the
// dashboard and the devices. The bearer token is tried as a device api
// key first, then as a session JWT.
type SessionOrDeviceMiddleware struct {
	resolver DeviceResolver
	secret   []byte
}

// NewSessionOrDeviceMiddleware constructs the combined middleware.
func NewSessionOrDeviceMiddleware(resolver DeviceResolver, secret []byte) (*SessionOrDeviceMiddleware, error) {
	if resolver == nil {
		return nil, errors.New("auth: nil resolver")
	}
	if len(secret) == 0 {
		return nil, errors.New("auth: empty secret")
	}
	return &SessionOrDeviceMiddleware{resolver: resolver, secret: secret}, nil
}

// Wrap enforces one of the two credentials and stashes whichever
// identity resolved in the request context.
func (m *SessionOrDeviceMiddleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ExtractBearer(r)
		if token == "" {
			respond.Error(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		device, err := m.resolver.Authenticate(r.Context(), token)
		if err == nil {
			next.ServeHTTP(w, r.WithContext(WithDevice(r.Context(), device)))
			return
		}
		if !errors.Is(err, registry.ErrNotFound) {
			respond.Error(w, http.StatusInternalServerError, "Authentication failed")
			return
		}

		claims, err := ParseJWT(token, m.secret)
		if err != nil {
			respond.Error(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), claims.Subject)))
	})
}
