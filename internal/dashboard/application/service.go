// Package application assembles the dashboard snapshot from the other
// modules' read paths.
package application

import (
	"context"
	"errors"
	"fmt"

	registryapp "watering-cloud/internal/registry/application"
	registry "watering-cloud/internal/registry/domain"
	relayapp "watering-cloud/internal/relay/application"
	relay "watering-cloud/internal/relay/domain"
	schedulesapp "watering-cloud/internal/schedules/application"
	schedules "watering-cloud/internal/schedules/domain"
	sensorsapp "watering-cloud/internal/sensors/application"
	sensors "watering-cloud/internal/sensors/domain"
)

const recentLogCount = 10

// SensorStatusUnknown is shown for a sensor that never reported.
const SensorStatusUnknown = "unknown"

// Snapshot is everything the dashboard renders for one device.
type Snapshot struct {
	Device          *registry.Device
	RelayActive     bool
	LastRelayLog    *relay.Log
	SensorStatuses  map[int]string
	ActiveSchedules []schedules.Schedule
	RecentSensor    []sensors.Log
	RecentRelay     []relay.Log
}

// Service builds dashboard snapshots.
type Service struct {
	devices   *registryapp.Service
	relays    *relayapp.Service
	sensors   *sensorsapp.Service
	schedules *schedulesapp.Service
}

// NewService builds a dashboard Service.
func NewService(devices *registryapp.Service, relays *relayapp.Service, sensorLogs *sensorsapp.Service, scheduleSvc *schedulesapp.Service) (*Service, error) {
	if devices == nil || relays == nil || sensorLogs == nil || scheduleSvc == nil {
		return nil, errors.New("dashboard: all services are required")
	}
	return &Service{devices: devices, relays: relays, sensors: sensorLogs, schedules: scheduleSvc}, nil
}

// Snapshot assembles the dashboard view for one device. A zero deviceID
// falls back to the first registered device, matching single-device
// deployments. Returns registry.ErrNotFound when no device matches.
func (s *Service) Snapshot(ctx context.Context, deviceID int64) (*Snapshot, error) {
	var (
		device *registry.Device
		err    error
	)
	if deviceID > 0 {
		device, err = s.devices.Get(ctx, deviceID)
	} else {
		device, err = s.devices.First(ctx)
	}
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return nil, registry.ErrNotFound
		}
		return nil, fmt.Errorf("load device: %w", err)
	}

	snapshot := &Snapshot{Device: device, SensorStatuses: map[int]string{}}

	lastRelay, err := s.relays.Latest(ctx, device.ID)
	switch {
	case err == nil:
		snapshot.LastRelayLog = lastRelay
		snapshot.RelayActive = lastRelay.Action == relay.ActionActivated || lastRelay.Action == relay.ActionScheduled
	case errors.Is(err, relay.ErrNotFound):
		// No relay activity yet.
	default:
		return nil, fmt.Errorf("load relay state: %w", err)
	}

	latestSensors, err := s.sensors.LatestByDevice(ctx, device.ID)
	if err != nil {
		return nil, fmt.Errorf("load sensor state: %w", err)
	}
	for n := sensors.MinSensorNumber; n <= sensors.MaxSensorNumber; n++ {
		if log, ok := latestSensors[n]; ok {
			snapshot.SensorStatuses[n] = log.Status
		} else {
			snapshot.SensorStatuses[n] = SensorStatusUnknown
		}
	}

	active := true
	snapshot.ActiveSchedules, err = s.schedules.List(ctx, schedules.ListFilter{DeviceID: device.ID, Active: &active})
	if err != nil {
		return nil, fmt.Errorf("load schedules: %w", err)
	}

	snapshot.RecentSensor, err = s.sensors.List(ctx, sensors.ListFilter{DeviceID: device.ID, Limit: recentLogCount})
	if err != nil {
		return nil, fmt.Errorf("load recent sensor logs: %w", err)
	}
	snapshot.RecentRelay, err = s.relays.List(ctx, relay.ListFilter{DeviceID: device.ID, Limit: recentLogCount})
	if err != nil {
		return nil, fmt.Errorf("load recent relay logs: %w", err)
	}

	return snapshot, nil
}
