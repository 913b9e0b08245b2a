package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"watering-cloud/internal/audit"
	"watering-cloud/internal/auth"
	registry "watering-cloud/internal/registry/domain"
	"watering-cloud/internal/relay/application"
	relay "watering-cloud/internal/relay/domain"
)

type memoryLogs struct {
	mu     sync.Mutex
	nextID int64
	logs   []relay.Log
}

func (m *memoryLogs) Insert(_ context.Context, log *relay.Log) (*relay.Log, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	stored := *log
	stored.ID = m.nextID
	stored.CreatedAt = time.Now().UTC()
	m.logs = append(m.logs, stored)
	return &stored, nil
}

func (m *memoryLogs) List(_ context.Context, filter relay.ListFilter) ([]relay.Log, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []relay.Log
	for i := len(m.logs) - 1; i >= 0; i-- {
		l := m.logs[i]
		if filter.DeviceID > 0 && l.DeviceID != filter.DeviceID {
			continue
		}
		if filter.Action != "" && l.Action != filter.Action {
			continue
		}
		matched = append(matched, l)
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (m *memoryLogs) Latest(_ context.Context, deviceID int64) (*relay.Log, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.logs) - 1; i >= 0; i-- {
		if m.logs[i].DeviceID == deviceID {
			l := m.logs[i]
			return &l, nil
		}
	}
	return nil, relay.ErrNotFound
}

type singleDevice struct {
	device registry.Device
}

func (s singleDevice) Get(_ context.Context, id int64) (*registry.Device, error) {
	if id == s.device.ID {
		copied := s.device
		return &copied, nil
	}
	return nil, registry.ErrNotFound
}

func (s singleDevice) GetByAPIKey(_ context.Context, apiKey string) (*registry.Device, error) {
	if apiKey == s.device.APIKey {
		copied := s.device
		return &copied, nil
	}
	return nil, registry.ErrNotFound
}

func (s singleDevice) Register(_ context.Context, _ *registry.Device) (*registry.Device, error) {
	return nil, registry.ErrNotFound
}

func (s singleDevice) List(_ context.Context, _ registry.ListFilter) ([]registry.Device, int, error) {
	return []registry.Device{s.device}, 1, nil
}

func (s singleDevice) UpdateStatus(_ context.Context, _ int64, _ registry.StatusUpdate) error {
	return nil
}

func (s singleDevice) MarkStale(_ context.Context, _ time.Time, _ time.Time) (int64, error) {
	return 0, nil
}

func (s singleDevice) First(_ context.Context) (*registry.Device, error) {
	copied := s.device
	return &copied, nil
}

func (s singleDevice) Authenticate(_ context.Context, apiKey string) (*registry.Device, error) {
	return s.GetByAPIKey(context.Background(), apiKey)
}

type captureAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (c *captureAudit) Log(_ context.Context, entry audit.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
	return nil
}

func newTestHandler(t *testing.T, logs *memoryLogs, sink audit.Logger) *Handler {
	t.Helper()
	devices := singleDevice{device: registry.Device{ID: 3, Name: "Unit", APIKey: "key-3", Status: registry.StatusActive}}
	service, err := application.NewService(logs, devices)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	deviceAuth, err := auth.NewDeviceKeyMiddleware(devices)
	if err != nil {
		t.Fatalf("new device auth: %v", err)
	}
	handler, err := NewHandler(service, deviceAuth, sink)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler
}

func postReport(handler *Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/relay/log", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer key-3")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func TestReport_ManualActivationStoresDuration(t *testing.T) {
	logs := &memoryLogs{}
	handler := newTestHandler(t, logs, nil)

	resp := postReport(handler, `{"event":"manual_activation","duration":120}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if len(logs.logs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(logs.logs))
	}
	stored := logs.logs[0]
	if stored.Action != relay.ActionActivated {
		t.Fatalf("expected activated, got %s", stored.Action)
	}
	if stored.DurationSeconds == nil || *stored.DurationSeconds != 120 {
		t.Fatalf("expected duration 120, got %v", stored.DurationSeconds)
	}
	if stored.DeviceID != 3 {
		t.Fatalf("log attached to device %d, want credential device 3", stored.DeviceID)
	}
}

func TestReport_ActivationWithoutDurationRejected(t *testing.T) {
	logs := &memoryLogs{}
	handler := newTestHandler(t, logs, nil)

	resp := postReport(handler, `{"event":"schedule_triggered"}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if len(logs.logs) != 0 {
		t.Fatal("rejected event must not be stored")
	}
}

func TestReport_DeactivationIgnoresDuration(t *testing.T) {
	logs := &memoryLogs{}
	handler := newTestHandler(t, logs, nil)

	resp := postReport(handler, `{"event":"deactivation","duration":55}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if logs.logs[0].Action != relay.ActionDeactivated || logs.logs[0].DurationSeconds != nil {
		t.Fatalf("expected duration-less deactivated row, got %+v", logs.logs[0])
	}
}

func TestReport_ScheduleAddedAcknowledgedWithoutRow(t *testing.T) {
	logs := &memoryLogs{}
	handler := newTestHandler(t, logs, nil)

	resp := postReport(handler, `{"event":"schedule_added"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if len(logs.logs) != 0 {
		t.Fatal("schedule_added must not produce a relay log row")
	}
}

func TestReport_UnknownEventRejected(t *testing.T) {
	handler := newTestHandler(t, &memoryLogs{}, nil)

	resp := postReport(handler, `{"event":"explode"}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestControl_RecordsAdvisoryLogAndAudit(t *testing.T) {
	logs := &memoryLogs{}
	sink := &captureAudit{}
	handler := newTestHandler(t, logs, sink)

	req := httptest.NewRequest(http.MethodPost, "/api/control/relay", strings.NewReader(`{"device_id":3,"action":"activate","duration":60}`))
	req = req.WithContext(auth.WithSubject(req.Context(), "operator@example.com"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if len(logs.logs) != 1 || logs.logs[0].Action != relay.ActionActivated {
		t.Fatalf("expected 1 activated log, got %+v", logs.logs)
	}
	if len(sink.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(sink.entries))
	}
	entry := sink.entries[0]
	if entry.Actor != "operator@example.com" || entry.Action != "relay.control" || entry.DeviceID != 3 {
		t.Fatalf("unexpected audit entry %+v", entry)
	}
}

func TestControl_UnknownDeviceIs404(t *testing.T) {
	handler := newTestHandler(t, &memoryLogs{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/control/relay", strings.NewReader(`{"device_id":99,"action":"deactivate"}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestList_FiltersByAction(t *testing.T) {
	logs := &memoryLogs{}
	handler := newTestHandler(t, logs, nil)

	for _, body := range []string{
		`{"event":"manual_activation","duration":30}`,
		`{"event":"deactivation"}`,
		`{"event":"schedule_triggered","duration":45}`,
	} {
		if resp := postReport(handler, body); resp.Code != http.StatusOK {
			t.Fatalf("seed failed: %d", resp.Code)
		}
	}

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/relay/logs?action=scheduled", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if got := strings.Count(resp.Body.String(), `"action"`); got != 1 {
		t.Fatalf("expected exactly 1 row, got %d", got)
	}
}

func TestList_RejectsUnknownAction(t *testing.T) {
	handler := newTestHandler(t, &memoryLogs{}, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/relay/logs?action=paused", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
