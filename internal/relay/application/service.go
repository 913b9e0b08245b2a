// Package application coordinates relay activity reporting and the
// operator-facing advisory control path.
package application

import (
	"context"
	"errors"
	"fmt"

	registry "watering-cloud/internal/registry/domain"
	relay "watering-cloud/internal/relay/domain"
)

// Operator control intents. The cloud has no command channel to the
// relay, so a control request only records the intent as a relay log.
const (
	ControlActivate   = "activate"
	ControlDeactivate = "deactivate"
)

// ValidationError carries field errors for the HTTP layer.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("relay: invalid request (%d fields)", len(e.Fields))
}

// Service validates and stores relay activity.
type Service struct {
	logs    relay.LogRepository
	devices registry.DeviceRepository
}

// NewService builds a relay Service.
func NewService(logs relay.LogRepository, devices registry.DeviceRepository) (*Service, error) {
	if logs == nil {
		return nil, errors.New("relay: log repository is required")
	}
	if devices == nil {
		return nil, errors.New("relay: device repository is required")
	}
	return &Service{logs: logs, devices: devices}, nil
}

// Report records a relay event from a device. schedule_added is
// acknowledged without a row; the returned log is nil in that case.
func (s *Service) Report(ctx context.Context, deviceID int64, event string, duration *int) (*relay.Log, error) {
	if event == relay.EventScheduleAdded {
		return nil, nil
	}

	action, ok := relay.ActionForEvent(event)
	if !ok {
		return nil, &ValidationError{Fields: map[string]string{"event": "must be one of manual_activation, schedule_triggered, deactivation, schedule_added"}}
	}
	if relay.EventNeedsDuration(event) {
		if duration == nil || *duration < 1 {
			return nil, &ValidationError{Fields: map[string]string{"duration": "must be a positive number of seconds"}}
		}
	} else {
		duration = nil
	}

	log, err := s.logs.Insert(ctx, &relay.Log{
		DeviceID:        deviceID,
		Action:          action,
		DurationSeconds: duration,
	})
	if err != nil {
		return nil, fmt.Errorf("store relay log: %w", err)
	}
	return log, nil
}

// Control records an operator intent against an existing device.
// Returns registry.ErrNotFound when the device does not exist.
func (s *Service) Control(ctx context.Context, deviceID int64, intent string, duration *int) (*relay.Log, error) {
	fields := map[string]string{}
	var action string
	switch intent {
	case ControlActivate:
		action = relay.ActionActivated
		if duration == nil || *duration < 1 {
			fields["duration"] = "must be a positive number of seconds"
		}
	case ControlDeactivate:
		action = relay.ActionDeactivated
		duration = nil
	default:
		fields["action"] = "must be activate or deactivate"
	}
	if deviceID <= 0 {
		fields["device_id"] = "must be a positive integer"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	if _, err := s.devices.Get(ctx, deviceID); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return nil, registry.ErrNotFound
		}
		return nil, fmt.Errorf("load device: %w", err)
	}

	log, err := s.logs.Insert(ctx, &relay.Log{
		DeviceID:        deviceID,
		Action:          action,
		DurationSeconds: duration,
	})
	if err != nil {
		return nil, fmt.Errorf("store relay log: %w", err)
	}
	return log, nil
}

// List returns stored relay logs newest first. The limit is clamped to
// 1..100 with a default of 20.
func (s *Service) List(ctx context.Context, filter relay.ListFilter) ([]relay.Log, error) {
	if filter.Action != "" && !relay.ValidAction(filter.Action) {
		return nil, &ValidationError{Fields: map[string]string{"action": "must be one of activated, deactivated, scheduled"}}
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	return s.logs.List(ctx, filter)
}

// Latest returns the newest relay log for a device, or relay.ErrNotFound.
func (s *Service) Latest(ctx context.Context, deviceID int64) (*relay.Log, error) {
	return s.logs.Latest(ctx, deviceID)
}
