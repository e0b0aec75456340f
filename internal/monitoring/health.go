// Package monitoring wires the relay's connectors into health probes.
package monitoring

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lewisedginton/whatsapp_relay/pkg/health"
	"github.com/lewisedginton/whatsapp_relay/pkg/health/checkers"
	"github.com/lewisedginton/whatsapp_relay/pkg/logger"
)

// Health status constants
const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// ShutdownCheckName is the readiness check that fails once shutdown begins
const ShutdownCheckName = "shutdown"

var errShuttingDown = errors.New("relay is shutting down")

// Connector is a running messaging connector that can report readiness
type Connector interface {
	Name() string
	Ready() error
}

// Config holds configuration for the health monitor
type Config struct {
	Logger     logger.Logger
	Version    string
	Connectors []Connector

	// BridgeHealthURL is an optional HTTP health endpoint of the WhatsApp bridge
	BridgeHealthURL string

	Timeout          time.Duration // Health check timeout
	FailureThreshold int           // Number of consecutive failures before reporting unhealthy
}

// Paths are the routes the monitor is mounted on
type Paths struct {
	Liveness  string
	Readiness string
	Combined  string
}

// HealthMonitor manages health checks and monitoring endpoints for the application
type HealthMonitor struct {
	checker      *health.Checker
	logger       logger.Logger
	version      string
	startTime    time.Time
	shuttingDown atomic.Bool
}

// NewHealthMonitor creates a new health monitor with configured checks
func NewHealthMonitor(cfg Config) *HealthMonitor {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	failureThreshold := cfg.FailureThreshold
	if failureThreshold == 0 {
		failureThreshold = 3
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	hm := &HealthMonitor{
		checker: health.New(
			health.WithLogger(log),
			health.WithTimeout(timeout),
			health.WithFailureThreshold(failureThreshold),
		),
		logger:    log,
		version:   version,
		startTime: time.Now(),
	}

	hm.checker.AddLivenessCheck(health.NewCheckFunc("process", func(ctx context.Context) error {
		return nil
	}))

	for _, c := range cfg.Connectors {
		hm.checker.AddReadinessCheck(checkers.NewReadyChecker(c.Name(), c))
	}
	if cfg.BridgeHealthURL != "" {
		hm.checker.AddReadinessCheck(checkers.NewHTTPChecker(cfg.BridgeHealthURL, "whatsapp_bridge"))
	}
	hm.checker.AddReadinessCheck(health.NewCheckFunc(ShutdownCheckName, func(ctx context.Context) error {
		if hm.shuttingDown.Load() {
			return errShuttingDown
		}
		return nil
	}))

	return hm
}

// Checker exposes the underlying checker, for the gRPC health service
func (hm *HealthMonitor) Checker() *health.Checker {
	return hm.checker
}

// MarkShuttingDown makes readiness fail so traffic drains before exit
func (hm *HealthMonitor) MarkShuttingDown() {
	hm.shuttingDown.Store(true)
}

// LivenessHandler returns an HTTP handler for liveness probes
func (hm *HealthMonitor) LivenessHandler() http.HandlerFunc {
	return hm.checker.LivenessHandler()
}

// ReadinessHandler returns an HTTP handler for readiness probes. It answers
// 503 until every connector is ready.
func (hm *HealthMonitor) ReadinessHandler() http.HandlerFunc {
	return hm.checker.ReadinessHandler()
}

// CombinedResponse is the body of the combined health endpoint
type CombinedResponse struct {
	Status    string          `json:"status"`
	Timestamp string          `json:"timestamp"`
	Uptime    string          `json:"uptime"`
	Version   string          `json:"version"`
	Liveness  health.Response `json:"liveness"`
	Readiness health.Response `json:"readiness"`
}

// HealthHandler returns a combined health endpoint that includes both liveness and readiness
func (hm *HealthMonitor) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		livenessStatus, livenessErr := hm.checker.CheckLiveness(ctx)
		readinessStatus, readinessErr := hm.checker.CheckReadiness(ctx)

		resp := CombinedResponse{
			Status:    statusHealthy,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Uptime:    time.Since(hm.startTime).Round(time.Second).String(),
			Version:   hm.version,
			Liveness:  health.NewResponse(livenessStatus, livenessErr),
			Readiness: health.NewResponse(readinessStatus, readinessErr),
		}

		code := http.StatusOK
		if !livenessStatus.Healthy || !readinessStatus.Healthy {
			resp.Status = statusUnhealthy
			code = http.StatusServiceUnavailable
		}
		health.WriteJSON(w, code, resp, hm.logger)
	}
}

// Mount registers the health endpoints on r
func (hm *HealthMonitor) Mount(r chi.Router, paths Paths) {
	r.Get(paths.Combined, hm.HealthHandler())
	r.Get(paths.Liveness, hm.LivenessHandler())
	r.Get(paths.Readiness, hm.ReadinessHandler())
}
