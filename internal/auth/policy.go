package auth

import (
	"net/http"
	"strings"
)

// Policy determines which requests require a dashboard session. Device-facing
// endpoints carry their own api-key credential and are resolved separately.
type Policy struct {
	ExemptPaths    map[string]struct{}
	ExemptPrefixes []string
}

// NewDefaultPolicy builds a policy with infrastructure exemptions.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{ExemptPaths: set, ExemptPrefixes: exemptPrefixes}
}

// RequiresSession resolves whether the request must carry a session token.
func (p Policy) RequiresSession(r *http.Request) bool {
	if r == nil {
		return false
	}
	if _, ok := p.ExemptPaths[r.URL.Path]; ok {
		return false
	}
	for _, prefix := range p.ExemptPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return false
		}
	}

	path := r.URL.Path
	method := r.Method

	switch {
	case path == "/api/device/register":
		return false
	case path == "/api/device/status" && method == http.MethodPost:
		return false
	case path == "/api/device/validate":
		return false
	case path == "/api/sensor/log" && method == http.MethodPost:
		return false
	case path == "/api/relay/log" && method == http.MethodPost:
		return false
	case path == "/api/schedules" && method == http.MethodGet:
		// Devices poll their watering schedule without a session.
		return false
	case path == "/api/schedules" && method == http.MethodPost:
		// Shared with devices; the route carries its own credential check.
		return false
	}

	return strings.HasPrefix(path, "/api/")
}
