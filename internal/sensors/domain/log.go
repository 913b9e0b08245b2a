// Package sensors holds the moisture-sensor reading model and its
// storage contract. Each watering device carries four sensors; readings
// arrive in batches alongside the device heartbeat.
package sensors

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Reading states a sensor can report.
const (
	StatusSafe    = "safe"
	StatusRaining = "raining"
)

const (
	MinSensorNumber = 1
	MaxSensorNumber = 4
)

// ErrNotFound is returned when no log row matches a lookup.
var ErrNotFound = errors.New("sensor log: not found")

// Log is one reading from one sensor on one device.
type Log struct {
	ID           int64
	DeviceID     int64
	SensorNumber int
	Status       string
	CreatedAt    time.Time
}

// Validate checks the fields a device is allowed to set.
func (l Log) Validate() error {
	if l.DeviceID <= 0 {
		return errors.New("device id is required")
	}
	if l.SensorNumber < MinSensorNumber || l.SensorNumber > MaxSensorNumber {
		return fmt.Errorf("sensor number must be between %d and %d", MinSensorNumber, MaxSensorNumber)
	}
	if l.Status != StatusSafe && l.Status != StatusRaining {
		return fmt.Errorf("status must be %q or %q", StatusSafe, StatusRaining)
	}
	return nil
}

// ListFilter narrows a log listing. Zero values mean "no constraint".
type ListFilter struct {
	DeviceID     int64
	SensorNumber int
	Limit        int
}

// LogRepository is the storage contract for sensor readings.
type LogRepository interface {
	// InsertLogs stores a batch of readings in one round trip and
	// returns the stored rows with ids and timestamps filled in.
	InsertLogs(ctx context.Context, logs []Log) ([]Log, error)

	// List returns readings newest first, honoring the filter.
	List(ctx context.Context, filter ListFilter) ([]Log, error)

	// LatestByDevice returns the most recent reading per sensor number
	// for one device, keyed by sensor number.
	LatestByDevice(ctx context.Context, deviceID int64) (map[int]Log, error)
}
