package reports

import (
	"bytes"
	"testing"
	"time"

	registry "watering-cloud/internal/registry/domain"
	relay "watering-cloud/internal/relay/domain"
	sensors "watering-cloud/internal/sensors/domain"
)

func testDevice() *registry.Device {
	seen := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	return &registry.Device{
		ID:         1,
		Name:       "Smart Watering Device - ab12",
		IPAddress:  "10.0.0.1",
		Status:     registry.StatusActive,
		LastSeenAt: &seen,
	}
}

func TestBuildSensorLogXLSX(t *testing.T) {
	logs := []sensors.Log{
		{ID: 1, DeviceID: 1, SensorNumber: 1, Status: sensors.StatusSafe, CreatedAt: time.Now().UTC()},
		{ID: 2, DeviceID: 1, SensorNumber: 2, Status: sensors.StatusRaining, CreatedAt: time.Now().UTC()},
	}

	payload, err := BuildSensorLogXLSX(testDevice(), logs)
	if err != nil {
		t.Fatalf("build xlsx: %v", err)
	}
	// XLSX files are zip archives.
	if !bytes.HasPrefix(payload, []byte("PK")) {
		t.Fatal("expected zip container signature")
	}
}

func TestBuildWateringPDF(t *testing.T) {
	duration := 120
	logs := []relay.Log{
		{ID: 1, DeviceID: 1, Action: relay.ActionActivated, DurationSeconds: &duration, CreatedAt: time.Now().UTC()},
		{ID: 2, DeviceID: 1, Action: relay.ActionDeactivated, CreatedAt: time.Now().UTC()},
	}

	payload, err := BuildWateringPDF(testDevice(), logs)
	if err != nil {
		t.Fatalf("build pdf: %v", err)
	}
	if !bytes.HasPrefix(payload, []byte("%PDF")) {
		t.Fatal("expected PDF signature")
	}
}

func TestBuildSensorLogXLSX_EmptyLogs(t *testing.T) {
	payload, err := BuildSensorLogXLSX(testDevice(), nil)
	if err != nil {
		t.Fatalf("build xlsx: %v", err)
	}
	if len(payload) == 0 {
		t.Fatal("expected non-empty workbook")
	}
}
