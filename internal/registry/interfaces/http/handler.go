package http

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"watering-cloud/internal/api/respond"
	"watering-cloud/internal/auth"
	"watering-cloud/internal/events"
	"watering-cloud/internal/observability/metrics"
	"watering-cloud/internal/registry/application"
	registry "watering-cloud/internal/registry/domain"
)

const dateLayout = "2006-01-02"

// Handler serves device registry endpoints.
type Handler struct {
	service   *application.Service
	publisher events.Publisher

	report   http.Handler
	validate http.Handler
}

// NewHandler constructs a registry handler. Device-facing routes are wrapped
// with the api-key middleware at construction time.
func NewHandler(service *application.Service, deviceAuth *auth.DeviceKeyMiddleware, publisher events.Publisher) (*Handler, error) {
	if service == nil {
		return nil, errors.New("registry handler: nil service")
	}
	if deviceAuth == nil {
		return nil, errors.New("registry handler: nil device auth")
	}
	h := &Handler{service: service, publisher: publisher}
	h.report = deviceAuth.Wrap(http.HandlerFunc(h.handleReport))
	h.validate = deviceAuth.Wrap(http.HandlerFunc(h.handleValidate))
	return h, nil
}

// ServeHTTP routes device registry requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/api/device/register":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleRegister(w, r)
	case path == "/api/device/status":
		switch r.Method {
		case http.MethodPost:
			h.report.ServeHTTP(w, r)
		case http.MethodGet:
			h.handleShowQuery(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case path == "/api/device/validate":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.validate.ServeHTTP(w, r)
	case path == "/api/devices":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleList(w, r)
	case strings.HasPrefix(path, "/api/device/"):
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleShowByPath(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type deviceView struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	IPAddress  string     `json:"ip_address"`
	Status     string     `json:"status"`
	LastSeenAt *time.Time `json:"last_seen_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func toView(device *registry.Device) deviceView {
	return deviceView{
		ID:         device.ID,
		Name:       device.Name,
		IPAddress:  device.IPAddress,
		Status:     string(device.Status),
		LastSeenAt: device.LastSeenAt,
		CreatedAt:  device.CreatedAt,
		UpdatedAt:  device.UpdatedAt,
	}
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IP string `json:"ip"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	device, err := h.service.Register(r.Context(), req.IP)
	if err != nil {
		if errors.Is(err, application.ErrInvalidIP) {
			respond.ValidationError(w, "Invalid IP address", map[string]string{"ip": "must be a valid IP literal"})
			return
		}
		respond.Error(w, http.StatusInternalServerError, "Device registration failed")
		return
	}

	if h.publisher != nil {
		_ = h.publisher.Publish(r.Context(), events.DeviceRegistered{
			DeviceID:   device.ID,
			IPAddress:  device.IPAddress,
			OccurredAt: device.CreatedAt,
		})
	}

	respond.Success(w, "Device registered", map[string]any{
		"device_id": device.ID,
		"api_key":   device.APIKey,
	})
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	device := auth.DeviceFromContext(r.Context())
	if device == nil {
		respond.Error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		Status    string `json:"status"`
		DeviceID  int64  `json:"device_id"`
		IPAddress string `json:"ip_address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.ObserveStatusReport("error", time.Since(start))
		respond.Error(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	// Identity derives from the credential alone; a conflicting body id is
	// rejected rather than silently ignored.
	if req.DeviceID != 0 && req.DeviceID != device.ID {
		metrics.ObserveStatusReport("error", time.Since(start))
		respond.Error(w, http.StatusForbidden, "Device id does not match credential")
		return
	}

	// Validation precedes any mutation.
	fields := map[string]string{}
	status := registry.Status(req.Status)
	if !status.Valid() {
		fields["status"] = "must be one of: active, inactive"
	}
	if req.IPAddress != "" && net.ParseIP(req.IPAddress) == nil {
		fields["ip_address"] = "must be a valid IP literal"
	}
	if len(fields) > 0 {
		metrics.ObserveStatusReport("error", time.Since(start))
		respond.ValidationError(w, "Invalid data format", fields)
		return
	}

	updated, err := h.service.ReportStatus(r.Context(), device.ID, status, req.IPAddress)
	if err != nil {
		metrics.ObserveStatusReport("error", time.Since(start))
		respond.Error(w, http.StatusInternalServerError, "Status update failed")
		return
	}

	metrics.ObserveStatusReport("success", time.Since(start))
	respond.Success(w, "Status updated", map[string]any{
		"device_status": string(updated.Status),
		"last_seen_at":  updated.LastSeenAt,
	})
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	device := auth.DeviceFromContext(r.Context())
	if device == nil {
		respond.Error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	respond.Success(w, "Device credentials valid", map[string]any{
		"device_id": device.ID,
		"name":      device.Name,
		"status":    string(device.Status),
	})
}

func (h *Handler) handleShowQuery(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("device_id")
	if raw == "" {
		raw = r.URL.Query().Get("id")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respond.ValidationError(w, "Invalid request parameters", map[string]string{"device_id": "must be a positive integer"})
		return
	}
	h.show(w, r, id)
}

func (h *Handler) handleShowByPath(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.URL.Path, "/api/device/")
	raw = strings.TrimSuffix(raw, "/")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	h.show(w, r, id)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request, id int64) {
	device, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "Device not found")
			return
		}
		respond.Error(w, http.StatusInternalServerError, "Device lookup failed")
		return
	}
	respond.Success(w, "", toView(device))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := registry.ListFilter{
		Status:   registry.Status(query.Get("status")),
		NameLike: query.Get("name"),
		SortKey:  query.Get("sort"),
		SortDesc: strings.EqualFold(query.Get("order"), "desc"),
	}

	fields := map[string]string{}
	if raw := query.Get("created_from"); raw != "" {
		from, err := time.Parse(dateLayout, raw)
		if err != nil {
			fields["created_from"] = "must be a YYYY-MM-DD date"
		} else {
			filter.CreatedFrom = from
		}
	}
	if raw := query.Get("created_to"); raw != "" {
		to, err := time.Parse(dateLayout, raw)
		if err != nil {
			fields["created_to"] = "must be a YYYY-MM-DD date"
		} else {
			// Inclusive date range: extend to end of day.
			filter.CreatedTo = to.Add(24*time.Hour - time.Nanosecond)
		}
	}
	if raw := query.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			fields["page"] = "must be a positive integer"
		} else {
			filter.Page = page
		}
	}
	if raw := query.Get("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 {
			fields["page_size"] = "must be a positive integer"
		} else {
			filter.PageSize = size
		}
	}
	if len(fields) > 0 {
		respond.ValidationError(w, "Invalid request parameters", fields)
		return
	}

	devices, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		if errors.Is(err, application.ErrInvalidStatus) {
			respond.ValidationError(w, "Invalid request parameters", map[string]string{"status": "must be one of: active, inactive"})
			return
		}
		if errors.Is(err, application.ErrInvalidSortKey) {
			respond.ValidationError(w, "Invalid request parameters", map[string]string{"sort": "unsupported sort column"})
			return
		}
		respond.Error(w, http.StatusInternalServerError, "Device listing failed")
		return
	}

	views := make([]deviceView, 0, len(devices))
	for i := range devices {
		views = append(views, toView(&devices[i]))
	}
	respond.Success(w, "", map[string]any{
		"devices":   views,
		"total":     total,
		"page":      filter.Page,
		"page_size": filter.PageSize,
	})
}
