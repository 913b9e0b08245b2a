package events

import (
	"context"
	"time"
)

// DeviceRegistered is published when a new device row is created.
type DeviceRegistered struct {
	DeviceID   int64     `json:"device_id"`
	IPAddress  string    `json:"ip_address"`
	OccurredAt time.Time `json:"occurred_at"`
}

// DeviceOffline is published after a sweep demotes stale devices.
type DeviceOffline struct {
	DeviceCount int64     `json:"device_count"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// RainDetected is published when a sensor reports rain.
type RainDetected struct {
	DeviceID     int64     `json:"device_id"`
	SensorNumber int       `json:"sensor_number"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Publisher delivers fleet events to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}
