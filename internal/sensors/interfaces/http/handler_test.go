package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"watering-cloud/internal/auth"
	"watering-cloud/internal/events"
	registry "watering-cloud/internal/registry/domain"
	"watering-cloud/internal/sensors/application"
	sensors "watering-cloud/internal/sensors/domain"
)

type memoryLogs struct {
	mu     sync.Mutex
	nextID int64
	logs   []sensors.Log
}

func (m *memoryLogs) InsertLogs(_ context.Context, logs []sensors.Log) ([]sensors.Log, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]sensors.Log, 0, len(logs))
	for _, l := range logs {
		m.nextID++
		l.ID = m.nextID
		l.CreatedAt = time.Now().UTC()
		m.logs = append(m.logs, l)
		stored = append(stored, l)
	}
	return stored, nil
}

func (m *memoryLogs) List(_ context.Context, filter sensors.ListFilter) ([]sensors.Log, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []sensors.Log
	for _, l := range m.logs {
		if filter.DeviceID > 0 && l.DeviceID != filter.DeviceID {
			continue
		}
		if filter.SensorNumber > 0 && l.SensorNumber != filter.SensorNumber {
			continue
		}
		matched = append(matched, l)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (m *memoryLogs) LatestByDevice(_ context.Context, deviceID int64) (map[int]sensors.Log, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest := map[int]sensors.Log{}
	for _, l := range m.logs {
		if l.DeviceID != deviceID {
			continue
		}
		if cur, ok := latest[l.SensorNumber]; !ok || l.ID > cur.ID {
			latest[l.SensorNumber] = l
		}
	}
	return latest, nil
}

type staticResolver struct {
	device *registry.Device
}

func (r staticResolver) Authenticate(_ context.Context, apiKey string) (*registry.Device, error) {
	if r.device != nil && r.device.APIKey == apiKey {
		copied := *r.device
		return &copied, nil
	}
	return nil, registry.ErrNotFound
}

type capturePublisher struct {
	mu     sync.Mutex
	events []any
}

func (p *capturePublisher) Publish(_ context.Context, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func newTestHandler(t *testing.T, repo sensors.LogRepository, publisher events.Publisher) *Handler {
	t.Helper()
	service, err := application.NewService(repo, publisher)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	deviceAuth, err := auth.NewDeviceKeyMiddleware(staticResolver{device: &registry.Device{
		ID: 7, Name: "Unit", APIKey: "key-7", Status: registry.StatusActive,
	}})
	if err != nil {
		t.Fatalf("new device auth: %v", err)
	}
	handler, err := NewHandler(service, deviceAuth)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler
}

func TestIngest_RequiresCredential(t *testing.T) {
	handler := newTestHandler(t, &memoryLogs{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/sensor/log", strings.NewReader(`{"sensors":[{"id":1,"status":"safe"}]}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestIngest_StoresBatchForCredentialDevice(t *testing.T) {
	repo := &memoryLogs{}
	handler := newTestHandler(t, repo, nil)

	body := `{"sensors":[{"id":1,"status":"safe"},{"id":2,"status":"raining"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/sensor/log", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer key-7")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if len(repo.logs) != 2 {
		t.Fatalf("expected 2 stored readings, got %d", len(repo.logs))
	}
	for _, l := range repo.logs {
		if l.DeviceID != 7 {
			t.Fatalf("reading attached to device %d, want credential device 7", l.DeviceID)
		}
	}
}

func TestIngest_RejectsOutOfRangeSensor(t *testing.T) {
	repo := &memoryLogs{}
	handler := newTestHandler(t, repo, nil)

	body := `{"sensors":[{"id":5,"status":"safe"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/sensor/log", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer key-7")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if len(repo.logs) != 0 {
		t.Fatal("invalid batch must not be partially stored")
	}
}

func TestIngest_PublishesRainEvent(t *testing.T) {
	publisher := &capturePublisher{}
	handler := newTestHandler(t, &memoryLogs{}, publisher)

	body := `{"sensors":[{"id":3,"status":"raining"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/sensor/log", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer key-7")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected 1 rain event, got %d", len(publisher.events))
	}
	rain, ok := publisher.events[0].(events.RainDetected)
	if !ok {
		t.Fatalf("unexpected event type %T", publisher.events[0])
	}
	if rain.DeviceID != 7 || rain.SensorNumber != 3 {
		t.Fatalf("unexpected rain event %+v", rain)
	}
}

func TestList_NewestFirstWithLimit(t *testing.T) {
	repo := &memoryLogs{}
	for i := 0; i < 30; i++ {
		if _, err := repo.InsertLogs(context.Background(), []sensors.Log{{
			DeviceID: 7, SensorNumber: 1 + i%4, Status: sensors.StatusSafe,
		}}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	handler := newTestHandler(t, repo, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/sensor/logs?device_id=7&limit=5", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body struct {
		Data struct {
			Logs []struct {
				ID int64 `json:"id"`
			} `json:"logs"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data.Logs) != 5 {
		t.Fatalf("expected 5 logs, got %d", len(body.Data.Logs))
	}
	for i := 1; i < len(body.Data.Logs); i++ {
		if body.Data.Logs[i].ID > body.Data.Logs[i-1].ID {
			t.Fatal("expected newest-first ordering")
		}
	}
}

func TestList_RejectsBadLimit(t *testing.T) {
	handler := newTestHandler(t, &memoryLogs{}, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/sensor/logs?limit=500", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
