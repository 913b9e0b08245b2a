package registry

import (
	"context"
	"errors"
	"net"
	"time"
)

// Status is the reported liveness of a device.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Valid reports whether the status is one of the allowed values.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// ErrNotFound indicates a missing device record.
var ErrNotFound = errors.New("device: not found")

// Device represents a registered watering unit.
type Device struct {
	ID         int64
	Name       string
	IPAddress  string
	APIKey     string
	Status     Status
	LastSeenAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Validate checks device invariants.
func (d Device) Validate() error {
	if d.Name == "" {
		return errors.New("device: empty name")
	}
	if net.ParseIP(d.IPAddress) == nil {
		return errors.New("device: invalid ip address")
	}
	if d.APIKey == "" {
		return errors.New("device: empty api key")
	}
	if !d.Status.Valid() {
		return errors.New("device: invalid status")
	}
	return nil
}

// ListFilter narrows and orders a device listing.
type ListFilter struct {
	Status      Status
	NameLike    string
	CreatedFrom time.Time
	CreatedTo   time.Time
	SortKey     string
	SortDesc    bool
	Page        int
	PageSize    int
}

// StatusUpdate is the heartbeat write applied on an authenticated report.
type StatusUpdate struct {
	Status     Status
	LastSeenAt time.Time
	IPAddress  string
}

// DeviceRepository manages device persistence.
type DeviceRepository interface {
	Get(ctx context.Context, id int64) (*Device, error)
	GetByAPIKey(ctx context.Context, apiKey string) (*Device, error)
	Register(ctx context.Context, device *Device) (*Device, error)
	List(ctx context.Context, filter ListFilter) ([]Device, int, error)
	UpdateStatus(ctx context.Context, id int64, update StatusUpdate) error
	MarkStale(ctx context.Context, cutoff time.Time, now time.Time) (int64, error)
	First(ctx context.Context) (*Device, error)
}
