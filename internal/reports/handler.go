package reports

import (
	"errors"
	"net/http"
	"strconv"

	"watering-cloud/internal/api/respond"
	registryapp "watering-cloud/internal/registry/application"
	registry "watering-cloud/internal/registry/domain"
	relayapp "watering-cloud/internal/relay/application"
	relay "watering-cloud/internal/relay/domain"
	sensorsapp "watering-cloud/internal/sensors/application"
	sensors "watering-cloud/internal/sensors/domain"
)

const exportLogLimit = 100

// Handler serves the downloadable report routes.
type Handler struct {
	devices    *registryapp.Service
	sensorLogs *sensorsapp.Service
	relayLogs  *relayapp.Service
}

// NewHandler builds the reports handler.
func NewHandler(devices *registryapp.Service, sensorLogs *sensorsapp.Service, relayLogs *relayapp.Service) (*Handler, error) {
	if devices == nil || sensorLogs == nil || relayLogs == nil {
		return nil, errors.New("reports: all services are required")
	}
	return &Handler{devices: devices, sensorLogs: sensorLogs, relayLogs: relayLogs}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respond.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	switch r.URL.Path {
	case "/api/exports/sensor-logs.xlsx":
		h.handleSensorXLSX(w, r)
	case "/api/reports/watering.pdf":
		h.handleWateringPDF(w, r)
	default:
		respond.Error(w, http.StatusNotFound, "Not found")
	}
}

func (h *Handler) deviceForRequest(w http.ResponseWriter, r *http.Request) *registry.Device {
	var (
		device *registry.Device
		err    error
	)
	if raw := r.URL.Query().Get("device_id"); raw != "" {
		id, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr != nil || id <= 0 {
			respond.ValidationError(w, "Invalid request parameters", map[string]string{"device_id": "must be a positive integer"})
			return nil
		}
		device, err = h.devices.Get(r.Context(), id)
	} else {
		device, err = h.devices.First(r.Context())
	}
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "Device not found")
			return nil
		}
		respond.Error(w, http.StatusInternalServerError, "Failed to load device")
		return nil
	}
	return device
}

func (h *Handler) handleSensorXLSX(w http.ResponseWriter, r *http.Request) {
	device := h.deviceForRequest(w, r)
	if device == nil {
		return
	}

	logs, err := h.sensorLogs.List(r.Context(), sensors.ListFilter{DeviceID: device.ID, Limit: exportLogLimit})
	if err != nil {
		respond.Error(w, http.StatusInternalServerError, "Failed to load sensor logs")
		return
	}

	payload, err := BuildSensorLogXLSX(device, logs)
	if err != nil {
		respond.Error(w, http.StatusInternalServerError, "Failed to render export")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="sensor-logs.xlsx"`)
	_, _ = w.Write(payload)
}

func (h *Handler) handleWateringPDF(w http.ResponseWriter, r *http.Request) {
	device := h.deviceForRequest(w, r)
	if device == nil {
		return
	}

	logs, err := h.relayLogs.List(r.Context(), relay.ListFilter{DeviceID: device.ID, Limit: exportLogLimit})
	if err != nil {
		respond.Error(w, http.StatusInternalServerError, "Failed to load relay logs")
		return
	}

	payload, err := BuildWateringPDF(device, logs)
	if err != nil {
		respond.Error(w, http.StatusInternalServerError, "Failed to render report")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="watering-report.pdf"`)
	_, _ = w.Write(payload)
}
