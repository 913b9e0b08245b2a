package respond

import (
	"encoding/json"
	"net/http"
)

// Envelope is the response shape shared by every API endpoint.
type Envelope struct {
	Status  string            `json:"status"`
	Message string            `json:"message,omitempty"`
	Data    any               `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// Success writes a success envelope with optional payload.
func Success(w http.ResponseWriter, message string, data any) {
	write(w, http.StatusOK, Envelope{Status: "success", Message: message, Data: data})
}

// Error writes an error envelope with the given HTTP status.
func Error(w http.ResponseWriter, code int, message string) {
	write(w, code, Envelope{Status: "error", Message: message})
}

// ValidationError writes a 400 envelope carrying a field-keyed error map.
func ValidationError(w http.ResponseWriter, message string, fields map[string]string) {
	write(w, http.StatusBadRequest, Envelope{Status: "error", Message: message, Errors: fields})
}

func write(w http.ResponseWriter, code int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(env)
}
