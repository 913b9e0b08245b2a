// Package http exposes the watering schedule endpoints.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"watering-cloud/internal/api/respond"
	"watering-cloud/internal/audit"
	"watering-cloud/internal/auth"
	registry "watering-cloud/internal/registry/domain"
	"watering-cloud/internal/schedules/application"
	schedules "watering-cloud/internal/schedules/domain"
)

// Handler serves the schedule routes.
type Handler struct {
	service     *application.Service
	auditLogger audit.Logger
	create      http.Handler
}

// NewHandler builds the schedule handler. Creation is shared between
// devices and the dashboard, so it is wrapped with the combined auth
// middleware at construction; auditLogger may be nil.
func NewHandler(service *application.Service, createAuth *auth.SessionOrDeviceMiddleware, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("schedules http: service is required")
	}
	if createAuth == nil {
		return nil, errors.New("schedules http: create auth is required")
	}
	h := &Handler{service: service, auditLogger: auditLogger}
	h.create = createAuth.Wrap(http.HandlerFunc(h.handleCreate))
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/schedules" && r.Method == http.MethodGet:
		h.handleList(w, r)
	case r.URL.Path == "/api/schedules" && r.Method == http.MethodPost:
		h.create.ServeHTTP(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/schedules/"):
		id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/api/schedules/"), 10, 64)
		if err != nil || id <= 0 {
			respond.ValidationError(w, "Invalid request parameters", map[string]string{"id": "must be a positive integer"})
			return
		}
		switch r.Method {
		case http.MethodPatch:
			h.handleUpdate(w, r, id)
		case http.MethodDelete:
			h.handleDelete(w, r, id)
		default:
			respond.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	default:
		respond.Error(w, http.StatusNotFound, "Not found")
	}
}

type scheduleView struct {
	ID       int64 `json:"id"`
	DeviceID int64 `json:"device_id"`
	Hour     int   `json:"hour"`
	Minute   int   `json:"minute"`
	Active   bool  `json:"active"`
}

func newScheduleView(s schedules.Schedule) scheduleView {
	return scheduleView{ID: s.ID, DeviceID: s.DeviceID, Hour: s.Hour, Minute: s.Minute, Active: s.Active}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var filter schedules.ListFilter
	fields := map[string]string{}
	if raw := query.Get("device_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			fields["device_id"] = "must be a positive integer"
		} else {
			filter.DeviceID = id
		}
	}
	if raw := query.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			fields["active"] = "must be true or false"
		} else {
			filter.Active = &active
		}
	}
	if len(fields) > 0 {
		respond.ValidationError(w, "Invalid request parameters", fields)
		return
	}

	list, err := h.service.List(r.Context(), filter)
	if err != nil {
		respond.Error(w, http.StatusInternalServerError, "Failed to list schedules")
		return
	}

	views := make([]scheduleView, 0, len(list))
	for _, s := range list {
		views = append(views, newScheduleView(s))
	}
	respond.Success(w, "Schedules", map[string]any{"schedules": views})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeviceID int64 `json:"device_id"`
		Hour     *int  `json:"hour"`
		Minute   *int  `json:"minute"`
		Active   *bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if req.Hour == nil || req.Minute == nil {
		respond.ValidationError(w, "Invalid data format", map[string]string{"hour": "hour and minute are required"})
		return
	}

	schedule := schedules.Schedule{
		DeviceID: req.DeviceID,
		Hour:     *req.Hour,
		Minute:   *req.Minute,
		Active:   true,
	}
	if req.Active != nil {
		schedule.Active = *req.Active
	}

	// A device credential pins the schedule to the caller's own device.
	if device := auth.DeviceFromContext(r.Context()); device != nil {
		schedule.DeviceID = device.ID
	}

	stored, err := h.service.Create(r.Context(), schedule)
	if err != nil {
		var validation *application.ValidationError
		switch {
		case errors.As(err, &validation):
			respond.ValidationError(w, "Invalid data format", validation.Fields)
		case errors.Is(err, registry.ErrNotFound):
			respond.Error(w, http.StatusNotFound, "Device not found")
		default:
			respond.Error(w, http.StatusInternalServerError, "Failed to store schedule")
		}
		return
	}

	h.writeAudit(r, "schedule.create", stored.ID, stored.DeviceID, map[string]any{
		"hour": stored.Hour, "minute": stored.Minute, "active": stored.Active,
	})
	respond.Success(w, "Schedule created", map[string]any{"schedule": newScheduleView(*stored)})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request, id int64) {
	var req struct {
		Hour   *int  `json:"hour"`
		Minute *int  `json:"minute"`
		Active *bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	stored, err := h.service.Update(r.Context(), id, schedules.Update{
		Hour:   req.Hour,
		Minute: req.Minute,
		Active: req.Active,
	})
	if err != nil {
		var validation *application.ValidationError
		switch {
		case errors.As(err, &validation):
			respond.ValidationError(w, "Invalid data format", validation.Fields)
		case errors.Is(err, schedules.ErrNotFound):
			respond.Error(w, http.StatusNotFound, "Schedule not found")
		default:
			respond.Error(w, http.StatusInternalServerError, "Failed to update schedule")
		}
		return
	}

	h.writeAudit(r, "schedule.update", stored.ID, stored.DeviceID, map[string]any{
		"hour": stored.Hour, "minute": stored.Minute, "active": stored.Active,
	})
	respond.Success(w, "Schedule updated", map[string]any{"schedule": newScheduleView(*stored)})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, id int64) {
	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, schedules.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "Schedule not found")
			return
		}
		respond.Error(w, http.StatusInternalServerError, "Failed to delete schedule")
		return
	}

	h.writeAudit(r, "schedule.delete", id, 0, nil)
	respond.Success(w, "Schedule deleted", nil)
}

func (h *Handler) writeAudit(r *http.Request, action string, scheduleID, deviceID int64, metadata map[string]any) {
	if h.auditLogger == nil {
		return
	}
	actor := auth.SubjectFromContext(r.Context())
	if actor == "" {
		if device := auth.DeviceFromContext(r.Context()); device != nil {
			actor = "device:" + strconv.FormatInt(device.ID, 10)
		}
	}
	var raw json.RawMessage
	if metadata != nil {
		raw, _ = json.Marshal(metadata)
	}
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        actor,
		Action:       action,
		ResourceType: "schedule",
		ResourceID:   strconv.FormatInt(scheduleID, 10),
		DeviceID:     deviceID,
		Metadata:     raw,
		IP:           r.RemoteAddr,
		UserAgent:    r.UserAgent(),
	})
}
