// Package schedules models the recurring watering times a device follows.
// Devices poll the list; operators maintain it.
package schedules

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no schedule matches a lookup.
var ErrNotFound = errors.New("schedule: not found")

// Schedule is one daily watering time for one device.
type Schedule struct {
	ID        int64
	DeviceID  int64
	Hour      int
	Minute    int
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks field ranges.
func (s Schedule) Validate() error {
	if s.DeviceID <= 0 {
		return errors.New("device id is required")
	}
	if s.Hour < 0 || s.Hour > 23 {
		return errors.New("hour must be between 0 and 23")
	}
	if s.Minute < 0 || s.Minute > 59 {
		return errors.New("minute must be between 0 and 59")
	}
	return nil
}

// Update carries a partial schedule change. Nil fields stay untouched.
type Update struct {
	Hour   *int
	Minute *int
	Active *bool
}

// ListFilter narrows a schedule listing.
type ListFilter struct {
	DeviceID int64
	Active   *bool
}

// Repository is the storage contract for schedules.
type Repository interface {
	Create(ctx context.Context, schedule *Schedule) (*Schedule, error)
	Get(ctx context.Context, id int64) (*Schedule, error)

	// List returns schedules ordered by hour then minute.
	List(ctx context.Context, filter ListFilter) ([]Schedule, error)

	Update(ctx context.Context, id int64, update Update) (*Schedule, error)
	Delete(ctx context.Context, id int64) error
}
