// Package http exposes the relay log and control endpoints.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"watering-cloud/internal/api/respond"
	"watering-cloud/internal/audit"
	"watering-cloud/internal/auth"
	"watering-cloud/internal/observability/metrics"
	registry "watering-cloud/internal/registry/domain"
	"watering-cloud/internal/relay/application"
	relay "watering-cloud/internal/relay/domain"
)

// Handler serves the relay routes.
type Handler struct {
	service     *application.Service
	auditLogger audit.Logger
	report      http.Handler
}

// NewHandler builds the relay handler. The report route is wrapped with
// device credential auth at construction; auditLogger may be nil.
func NewHandler(service *application.Service, deviceAuth *auth.DeviceKeyMiddleware, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("relay http: service is required")
	}
	if deviceAuth == nil {
		return nil, errors.New("relay http: device auth is required")
	}
	h := &Handler{service: service, auditLogger: auditLogger}
	h.report = deviceAuth.Wrap(http.HandlerFunc(h.handleReport))
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/relay/log" && r.Method == http.MethodPost:
		h.report.ServeHTTP(w, r)
	case r.URL.Path == "/api/relay/logs" && r.Method == http.MethodGet:
		h.handleList(w, r)
	case r.URL.Path == "/api/control/relay" && r.Method == http.MethodPost:
		h.handleControl(w, r)
	default:
		respond.Error(w, http.StatusNotFound, "Not found")
	}
}

type logView struct {
	ID              int64     `json:"id"`
	DeviceID        int64     `json:"device_id"`
	Action          string    `json:"action"`
	DurationSeconds *int      `json:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at"`
}

func newLogView(l relay.Log) logView {
	return logView{
		ID:              l.ID,
		DeviceID:        l.DeviceID,
		Action:          l.Action,
		DurationSeconds: l.DurationSeconds,
		CreatedAt:       l.CreatedAt,
	}
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	device := auth.DeviceFromContext(r.Context())
	if device == nil {
		respond.Error(w, http.StatusUnauthorized, "Invalid device credentials")
		return
	}

	var req struct {
		Event    string `json:"event"`
		Duration *int   `json:"duration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.ObserveIngest("relay", "invalid", time.Since(started))
		respond.Error(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	log, err := h.service.Report(r.Context(), device.ID, req.Event, req.Duration)
	if err != nil {
		var validation *application.ValidationError
		if errors.As(err, &validation) {
			metrics.ObserveIngest("relay", "invalid", time.Since(started))
			respond.ValidationError(w, "Invalid data format", validation.Fields)
			return
		}
		metrics.ObserveIngest("relay", "error", time.Since(started))
		respond.Error(w, http.StatusInternalServerError, "Failed to store relay log")
		return
	}

	metrics.ObserveIngest("relay", "success", time.Since(started))
	if log == nil {
		// schedule_added: acknowledged, bookkeeping lives with schedules.
		respond.Success(w, "Relay event acknowledged", nil)
		return
	}
	respond.Success(w, "Relay event recorded", map[string]any{"log": newLogView(*log)})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var filter relay.ListFilter
	fields := map[string]string{}
	if raw := query.Get("device_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			fields["device_id"] = "must be a positive integer"
		} else {
			filter.DeviceID = id
		}
	}
	filter.Action = query.Get("action")
	if raw := query.Get("date_from"); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			fields["date_from"] = "must be formatted YYYY-MM-DD"
		} else {
			filter.From = from
		}
	}
	if raw := query.Get("date_to"); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			fields["date_to"] = "must be formatted YYYY-MM-DD"
		} else {
			// Inclusive through the end of the named day.
			filter.To = to.Add(24*time.Hour - time.Nanosecond)
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
		respond.Error(w, http.StatusInternalServerError, "Failed to list relay logs")
		return
	}

	views := make([]logView, 0, len(logs))
	for _, l := range logs {
		views = append(views, newLogView(l))
	}
	respond.Success(w, "Relay logs", map[string]any{"logs": views})
}

func (h *Handler) handleControl(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeviceID int64  `json:"device_id"`
		Action   string `json:"action"`
		Duration *int   `json:"duration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	log, err := h.service.Control(r.Context(), req.DeviceID, req.Action, req.Duration)
	if err != nil {
		var validation *application.ValidationError
		switch {
		case errors.As(err, &validation):
			respond.ValidationError(w, "Invalid data format", validation.Fields)
		case errors.Is(err, registry.ErrNotFound):
			respond.Error(w, http.StatusNotFound, "Device not found")
		default:
			respond.Error(w, http.StatusInternalServerError, "Failed to store relay log")
		}
		return
	}

	if h.auditLogger != nil {
		metadata, _ := json.Marshal(map[string]any{"action": req.Action, "duration": req.Duration})
		_ = h.auditLogger.Log(r.Context(), audit.Entry{
			Actor:        auth.SubjectFromContext(r.Context()),
			Action:       "relay.control",
			ResourceType: "relay_log",
			ResourceID:   strconv.FormatInt(log.ID, 10),
			DeviceID:     req.DeviceID,
			Metadata:     metadata,
			IP:           r.RemoteAddr,
			UserAgent:    r.UserAgent(),
		})
	}

	respond.Success(w, "Relay control recorded", map[string]any{"log": newLogView(*log)})
}
