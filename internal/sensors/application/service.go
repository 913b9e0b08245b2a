// Package application coordinates sensor log ingestion and reads.
package application

import (
	"context"
	"errors"
	"fmt"

	"watering-cloud/internal/events"
	sensors "watering-cloud/internal/sensors/domain"
)

// ErrEmptyBatch is returned when an ingest request carries no readings.
var ErrEmptyBatch = errors.New("sensors: empty batch")

// ValidationError carries per-reading field errors for the HTTP layer.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("sensors: invalid readings (%d fields)", len(e.Fields))
}

// Reading is one incoming sensor report before persistence.
type Reading struct {
	SensorNumber int
	Status       string
}

// Service validates and stores sensor readings.
type Service struct {
	repo      sensors.LogRepository
	publisher events.Publisher
}

// NewService builds a sensor Service. The publisher is optional.
func NewService(repo sensors.LogRepository, publisher events.Publisher) (*Service, error) {
	if repo == nil {
		return nil, errors.New("sensors: repository is required")
	}
	return &Service{repo: repo, publisher: publisher}, nil
}

// Ingest validates a batch of readings for one device, stores them in a
// single round trip, and publishes a rain event per raining sensor.
func (s *Service) Ingest(ctx context.Context, deviceID int64, readings []Reading) ([]sensors.Log, error) {
	if len(readings) == 0 {
		return nil, ErrEmptyBatch
	}

	fields := map[string]string{}
	logs := make([]sensors.Log, 0, len(readings))
	for i, reading := range readings {
		l := sensors.Log{
			DeviceID:     deviceID,
			SensorNumber: reading.SensorNumber,
			Status:       reading.Status,
		}
		if err := l.Validate(); err != nil {
			fields[fmt.Sprintf("sensors.%d", i)] = err.Error()
			continue
		}
		logs = append(logs, l)
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	stored, err := s.repo.InsertLogs(ctx, logs)
	if err != nil {
		return nil, fmt.Errorf("store readings: %w", err)
	}

	if s.publisher != nil {
		for _, l := range stored {
			if l.Status != sensors.StatusRaining {
				continue
			}
			_ = s.publisher.Publish(ctx, events.RainDetected{
				DeviceID:     l.DeviceID,
				SensorNumber: l.SensorNumber,
				OccurredAt:   l.CreatedAt,
			})
		}
	}
	return stored, nil
}

// List returns stored readings newest first. The limit is clamped to 1..100
// with a default of 20.
func (s *Service) List(ctx context.Context, filter sensors.ListFilter) ([]sensors.Log, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	if filter.SensorNumber != 0 &&
		(filter.SensorNumber < sensors.MinSensorNumber || filter.SensorNumber > sensors.MaxSensorNumber) {
		return nil, &ValidationError{Fields: map[string]string{
			"sensor_number": fmt.Sprintf("must be between %d and %d", sensors.MinSensorNumber, sensors.MaxSensorNumber),
		}}
	}
	return s.repo.List(ctx, filter)
}

// LatestByDevice returns the newest reading per sensor for one device.
func (s *Service) LatestByDevice(ctx context.Context, deviceID int64) (map[int]sensors.Log, error) {
	return s.repo.LatestByDevice(ctx, deviceID)
}
