// Package http exposes the dashboard status endpoint.
package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"watering-cloud/internal/api/respond"
	"watering-cloud/internal/dashboard/application"
	registry "watering-cloud/internal/registry/domain"
	relay "watering-cloud/internal/relay/domain"
	schedules "watering-cloud/internal/schedules/domain"
	sensors "watering-cloud/internal/sensors/domain"
)

// Handler serves the dashboard aggregate.
type Handler struct {
	service *application.Service
}

// NewHandler builds the dashboard handler.
func NewHandler(service *application.Service) (*Handler, error) {
	if service == nil {
		return nil, errors.New("dashboard http: service is required")
	}
	return &Handler{service: service}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/dashboard/status" || r.Method != http.MethodGet {
		respond.Error(w, http.StatusNotFound, "Not found")
		return
	}

	var deviceID int64
	if raw := r.URL.Query().Get("device_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			respond.ValidationError(w, "Invalid request parameters", map[string]string{"device_id": "must be a positive integer"})
			return
		}
		deviceID = id
	}

	snapshot, err := h.service.Snapshot(r.Context(), deviceID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "Device not found")
			return
		}
		respond.Error(w, http.StatusInternalServerError, "Failed to load dashboard")
		return
	}

	respond.Success(w, "Dashboard status", buildView(snapshot))
}

type deviceView struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	IPAddress  string     `json:"ip_address"`
	Status     string     `json:"status"`
	LastSeenAt *time.Time `json:"last_seen_at"`
}

type relayLogView struct {
	ID              int64     `json:"id"`
	Action          string    `json:"action"`
	DurationSeconds *int      `json:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at"`
}

type sensorLogView struct {
	ID           int64     `json:"id"`
	SensorNumber int       `json:"sensor_number"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

type scheduleView struct {
	ID     int64 `json:"id"`
	Hour   int   `json:"hour"`
	Minute int   `json:"minute"`
	Active bool  `json:"active"`
}

func buildView(snapshot *application.Snapshot) map[string]any {
	device := snapshot.Device
	view := map[string]any{
		"device": deviceView{
			ID:         device.ID,
			Name:       device.Name,
			IPAddress:  device.IPAddress,
			Status:     string(device.Status),
			LastSeenAt: device.LastSeenAt,
		},
		"relay": map[string]any{
			"active":   snapshot.RelayActive,
			"last_log": relayView(snapshot.LastRelayLog),
		},
		"sensors":          sensorStatusView(snapshot.SensorStatuses),
		"active_schedules": scheduleViews(snapshot.ActiveSchedules),
		"recent": map[string]any{
			"sensor_logs": sensorViews(snapshot.RecentSensor),
			"relay_logs":  relayViews(snapshot.RecentRelay),
		},
	}
	return view
}

func relayView(l *relay.Log) *relayLogView {
	if l == nil {
		return nil
	}
	return &relayLogView{ID: l.ID, Action: l.Action, DurationSeconds: l.DurationSeconds, CreatedAt: l.CreatedAt}
}

func relayViews(logs []relay.Log) []relayLogView {
	views := make([]relayLogView, 0, len(logs))
	for _, l := range logs {
		views = append(views, *relayView(&l))
	}
	return views
}

func sensorViews(logs []sensors.Log) []sensorLogView {
	views := make([]sensorLogView, 0, len(logs))
	for _, l := range logs {
		views = append(views, sensorLogView{ID: l.ID, SensorNumber: l.SensorNumber, Status: l.Status, CreatedAt: l.CreatedAt})
	}
	return views
}

func sensorStatusView(statuses map[int]string) map[string]string {
	view := make(map[string]string, len(statuses))
	for n, status := range statuses {
		view["sensor_"+strconv.Itoa(n)] = status
	}
	return view
}

func scheduleViews(list []schedules.Schedule) []scheduleView {
	views := make([]scheduleView, 0, len(list))
	for _, s := range list {
		views = append(views, scheduleView{ID: s.ID, Hour: s.Hour, Minute: s.Minute, Active: s.Active})
	}
	return views
}
