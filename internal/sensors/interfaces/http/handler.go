// Package http exposes the sensor log endpoints.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"watering-cloud/internal/api/respond"
	"watering-cloud/internal/auth"
	"watering-cloud/internal/observability/metrics"
	"watering-cloud/internal/sensors/application"
	sensors "watering-cloud/internal/sensors/domain"
)

// Handler serves the sensor log routes.
type Handler struct {
	service *application.Service
	ingest  http.Handler
}

// NewHandler builds the sensor handler. Ingest is wrapped with device
// credential auth at construction so routing stays a plain switch.
func NewHandler(service *application.Service, deviceAuth *auth.DeviceKeyMiddleware) (*Handler, error) {
	if service == nil {
		return nil, errors.New("sensors http: service is required")
	}
	if deviceAuth == nil {
		return nil, errors.New("sensors http: device auth is required")
	}
	h := &Handler{service: service}
	h.ingest = deviceAuth.Wrap(http.HandlerFunc(h.handleIngest))
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/sensor/log" && r.Method == http.MethodPost:
		h.ingest.ServeHTTP(w, r)
	case r.URL.Path == "/api/sensor/logs" && r.Method == http.MethodGet:
		h.handleList(w, r)
	default:
		respond.Error(w, http.StatusNotFound, "Not found")
	}
}

type logView struct {
	ID           int64     `json:"id"`
	DeviceID     int64     `json:"device_id"`
	SensorNumber int       `json:"sensor_number"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

func newLogView(l sensors.Log) logView {
	return logView{
		ID:           l.ID,
		DeviceID:     l.DeviceID,
		SensorNumber: l.SensorNumber,
		Status:       l.Status,
		CreatedAt:    l.CreatedAt,
	}
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	device := auth.DeviceFromContext(r.Context())
	if device == nil {
		respond.Error(w, http.StatusUnauthorized, "Invalid device credentials")
		return
	}

	var req struct {
		Sensors []struct {
			ID     int    `json:"id"`
			Status string `json:"status"`
		} `json:"sensors"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.ObserveIngest("sensor", "invalid", time.Since(started))
		respond.Error(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	readings := make([]application.Reading, 0, len(req.Sensors))
	for _, s := range req.Sensors {
		readings = append(readings, application.Reading{SensorNumber: s.ID, Status: s.Status})
	}

	stored, err := h.service.Ingest(r.Context(), device.ID, readings)
	if err != nil {
		var validation *application.ValidationError
		switch {
		case errors.Is(err, application.ErrEmptyBatch):
			metrics.ObserveIngest("sensor", "invalid", time.Since(started))
			respond.ValidationError(w, "Invalid data format", map[string]string{"sensors": "at least one reading is required"})
		case errors.As(err, &validation):
			metrics.ObserveIngest("sensor", "invalid", time.Since(started))
			respond.ValidationError(w, "Invalid data format", validation.Fields)
		default:
			metrics.ObserveIngest("sensor", "error", time.Since(started))
			respond.Error(w, http.StatusInternalServerError, "Failed to store sensor logs")
		}
		return
	}

	metrics.ObserveIngest("sensor", "success", time.Since(started))
	views := make([]logView, 0, len(stored))
	for _, l := range stored {
		views = append(views, newLogView(l))
	}
	respond.Success(w, "Sensor logs recorded", map[string]any{"logs": views})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var filter sensors.ListFilter
	fields := map[string]string{}
	if raw := query.Get("device_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			fields["device_id"] = "must be a positive integer"
		} else {
			filter.DeviceID = id
		}
	}
	if raw := query.Get("sensor_number"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			fields["sensor_number"] = "must be an integer"
		} else {
			filter.SensorNumber = n
		}
	}
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			fields["limit"] = "must be between 1 and 100"
		} else {
			filter.Limit = n
		}
	}
	if len(fields) > 0 {
		respond.ValidationError(w, "Invalid request parameters", fields)
		return
	}

	logs, err := h.service.List(r.Context(), filter)
	if err != nil {
		var validation *application.ValidationError
		if errors.As(err, &validation) {
			respond.ValidationError(w, "Invalid request parameters", validation.Fields)
			return
		}
		respond.Error(w, http.StatusInternalServerError, "Failed to list sensor logs")
		return
	}

	views := make([]logView, 0, len(logs))
	for _, l := range logs {
		views = append(views, newLogView(l))
	}
	respond.Success(w, "Sensor logs", map[string]any{"logs": views})
}
