package health

import (
	"encoding/json"
	"net/http"

	"github.com/lewisedginton/whatsapp_relay/pkg/logger"
)

// Response is the JSON body served by the probe handlers.
type Response struct {
	Status  string                 `json:"status"`
	Checks  map[string]CheckStatus `json:"checks,omitempty"`
	Message string                 `json:"message,omitempty"`
}

type CheckStatus struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// NewResponse converts a probe result into its JSON shape.
func NewResponse(status *Status, err error) Response {
	resp := Response{Status: "healthy", Checks: make(map[string]CheckStatus, len(status.Checks))}
	if !status.Healthy {
		resp.Status = "unhealthy"
		if err != nil {
			resp.Message = err.Error()
		}
	}
	for _, c := range status.Checks {
		cs := CheckStatus{Status: "ok", Latency: c.Latency.String()}
		if !c.Healthy {
			cs.Status = "error"
			cs.Error = c.Error
		}
		resp.Checks[c.Name] = cs
	}
	return resp
}

// LivenessHandler answers 200 while the process is alive and 503 when it should be restarted.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := c.CheckLiveness(r.Context())
		c.write(w, status, err)
	}
}

// ReadinessHandler answers 200 while every connector can relay messages.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := c.CheckReadiness(r.Context())
		c.write(w, status, err)
	}
}

func (c *Checker) write(w http.ResponseWriter, status *Status, err error) {
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	WriteJSON(w, code, NewResponse(status, err), c.logger)
}

// WriteJSON encodes body with the given status code
func WriteJSON(w http.ResponseWriter, code int, body any, log logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil && log != nil {
		log.Error("Failed to encode health response", logger.ErrorField(err))
	}
}
