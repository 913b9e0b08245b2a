package auth

import (
	"context"

	registry "watering-cloud/internal/registry/domain"
)

type contextKey string

const (
	contextKeySubject contextKey = "auth.subject"
	contextKeyDevice  contextKey = "auth.device"
)

// WithSubject stores the authenticated user subject in context.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, contextKeySubject, subject)
}

// SubjectFromContext extracts the user subject from context.
func SubjectFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if subject, ok := ctx.Value(contextKeySubject).(string); ok {
		return subject
	}
	return ""
}

// WithDevice stores the authenticated device in context.
func WithDevice(ctx context.Context, device *registry.Device) context.Context {
	return context.WithValue(ctx, contextKeyDevice, device)
}

// DeviceFromContext extracts the authenticated device from context.
func DeviceFromContext(ctx context.Context) *registry.Device {
	if ctx == nil {
		return nil
	}
	if device, ok := ctx.Value(contextKeyDevice).(*registry.Device); ok {
		return device
	}
	return nil
}
