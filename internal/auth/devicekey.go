package auth

import (
	"context"
	"errors"
	"net/http"

	"watering-cloud/internal/api/respond"
	registry "watering-cloud/internal/registry/domain"
)

// DeviceResolver resolves a device from its api key.
type DeviceResolver interface {
	Authenticate(ctx context.Context, apiKey string) (*registry.Device, error)
}

// DeviceKeyMiddleware authenticates device-facing endpoints by api key.
// The credential travels as "Authorization: Bearer <api_key>"; no other
// transport is accepted.
type DeviceKeyMiddleware struct {
	resolver DeviceResolver
}

// NewDeviceKeyMiddleware constructs a device auth middleware.
func NewDeviceKeyMiddleware(resolver DeviceResolver) (*DeviceKeyMiddleware, error) {
	if resolver == nil {
		return nil, errors.New("device auth: nil resolver")
	}
	return &DeviceKeyMiddleware{resolver: resolver}, nil
}

// Wrap enforces device credential validation and stashes the resolved
// device in the request context.
func (m *DeviceKeyMiddleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := ExtractBearer(r)
		if key == "" {
			respond.Error(w, http.StatusUnauthorized, "Invalid device credentials")
			return
		}
		device, err := m.resolver.Authenticate(r.Context(), key)
		if err != nil {
			if errors.Is(err, registry.ErrNotFound) {
				respond.Error(w, http.StatusUnauthorized, "Invalid device credentials")
				return
			}
			respond.Error(w, http.StatusInternalServerError, "Authentication failed")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithDevice(r.Context(), device)))
	})
}
