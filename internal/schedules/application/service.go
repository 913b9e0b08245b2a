// Package application coordinates schedule maintenance.
package application

import (
	"context"
	"errors"
	"fmt"

	registry "watering-cloud/internal/registry/domain"
	schedules "watering-cloud/internal/schedules/domain"
)

// ValidationError carries field errors for the HTTP layer.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schedules: invalid request (%d fields)", len(e.Fields))
}

// Service validates and stores watering schedules.
type Service struct {
	repo    schedules.Repository
	devices registry.DeviceRepository
}

// NewService builds a schedule Service.
func NewService(repo schedules.Repository, devices registry.DeviceRepository) (*Service, error) {
	if repo == nil {
		return nil, errors.New("schedules: repository is required")
	}
	if devices == nil {
		return nil, errors.New("schedules: device repository is required")
	}
	return &Service{repo: repo, devices: devices}, nil
}

// Create validates a new schedule against an existing device and stores
// it. Returns registry.ErrNotFound when the device does not exist.
func (s *Service) Create(ctx context.Context, schedule schedules.Schedule) (*schedules.Schedule, error) {
	fields := map[string]string{}
	if schedule.DeviceID <= 0 {
		fields["device_id"] = "must be a positive integer"
	}
	if schedule.Hour < 0 || schedule.Hour > 23 {
		fields["hour"] = "must be between 0 and 23"
	}
	if schedule.Minute < 0 || schedule.Minute > 59 {
		fields["minute"] = "must be between 0 and 59"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	if _, err := s.devices.Get(ctx, schedule.DeviceID); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return nil, registry.ErrNotFound
		}
		return nil, fmt.Errorf("load device: %w", err)
	}

	stored, err := s.repo.Create(ctx, &schedule)
	if err != nil {
		return nil, fmt.Errorf("store schedule: %w", err)
	}
	return stored, nil
}

// List returns schedules ordered by hour then minute.
func (s *Service) List(ctx context.Context, filter schedules.ListFilter) ([]schedules.Schedule, error) {
	return s.repo.List(ctx, filter)
}

// Update applies a partial change. Returns schedules.ErrNotFound when
// the schedule does not exist.
func (s *Service) Update(ctx context.Context, id int64, update schedules.Update) (*schedules.Schedule, error) {
	fields := map[string]string{}
	if update.Hour != nil && (*update.Hour < 0 || *update.Hour > 23) {
		fields["hour"] = "must be between 0 and 23"
	}
	if update.Minute != nil && (*update.Minute < 0 || *update.Minute > 59) {
		fields["minute"] = "must be between 0 and 59"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	return s.repo.Update(ctx, id, update)
}

// Delete removes a schedule. Returns schedules.ErrNotFound when absent.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}
