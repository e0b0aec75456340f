// Package metrics provides Prometheus metrics for the relay pipeline and the
// HTTP and gRPC operational endpoints.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lewisedginton/whatsapp_relay/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	namespace = "whatsapp_relay"

	relaySubsystem = "relay"
	opsSubsystem   = "ops"

	platformLabel  = "platform"
	generatorLabel = "generator"
)

// Metrics owns a private registry so tests and multiple instances never
// collide on the default one.
type Metrics struct {
	reg *prometheus.Registry

	messagesReceived *prometheus.CounterVec
	messagesSkipped  *prometheus.CounterVec
	messagesReplied  *prometheus.CounterVec
	messagesFailed   *prometheus.CounterVec
	fallbacksFailed  *prometheus.CounterVec

	generationDuration *prometheus.HistogramVec

	TotalHTTPRequestsCounter prometheus.Counter
	HTTPDurationHistogram    prometheus.Histogram
	TotalGrpcRequestsCounter prometheus.Counter
	GrpcDurationHistogram    prometheus.Histogram

	mu                   sync.Mutex
	httpRequestsCounters map[int]prometheus.Counter
	grpcRequestsCounters map[int]prometheus.Counter

	log logger.Logger
}

var durationBuckets = []float64{0.1, 0.3, 0.5, 0.7, 1.0, 3.0, 5.0, 7.0, 10.0}

// NewMetrics creates a Metrics instance. Relay metrics are always registered;
// HTTP and gRPC collectors only when requested.
func NewMetrics(httpCounters, grpcCounters bool, l logger.Logger) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		log: l,
	}

	newRelayCounter := func(name, help string) *prometheus.CounterVec {
		c := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: relaySubsystem,
			Name:      name,
			Help:      help,
		}, []string{platformLabel})
		m.reg.MustRegister(c)
		return c
	}

	m.messagesReceived = newRelayCounter("messages_received_total", "Inbound messages seen by the relay")
	m.messagesSkipped = newRelayCounter("messages_skipped_total", "Inbound messages skipped because the body was empty")
	m.messagesReplied = newRelayCounter("messages_replied_total", "Messages answered with generated text")
	m.messagesFailed = newRelayCounter("messages_failed_total", "Messages answered with the fallback text")
	m.fallbacksFailed = newRelayCounter("fallbacks_failed_total", "Fallback replies that could not be delivered")

	m.generationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: relaySubsystem,
		Name:      "generation_duration_seconds",
		Help:      "Time spent waiting for the language model",
		Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
	}, []string{generatorLabel})
	m.reg.MustRegister(m.generationDuration)

	if httpCounters {
		m.TotalHTTPRequestsCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: opsSubsystem,
			Name:      "total_http_requests",
			Help:      "Total HTTP requests",
		})
		m.HTTPDurationHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: opsSubsystem,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   durationBuckets,
		})
		m.reg.MustRegister(m.TotalHTTPRequestsCounter, m.HTTPDurationHistogram)
		m.httpRequestsCounters = make(map[int]prometheus.Counter)
	}
	if grpcCounters {
		m.TotalGrpcRequestsCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: opsSubsystem,
			Name:      "total_grpc_requests",
			Help:      "Total gRPC requests",
		})
		m.GrpcDurationHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: opsSubsystem,
			Name:      "grpc_request_duration_seconds",
			Help:      "gRPC request duration in seconds",
			Buckets:   durationBuckets,
		})
		m.reg.MustRegister(m.TotalGrpcRequestsCounter, m.GrpcDurationHistogram)
		m.grpcRequestsCounters = make(map[int]prometheus.Counter)
	}
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) MessageReceived(platform string) {
	m.messagesReceived.WithLabelValues(platform).Inc()
}

func (m *Metrics) MessageSkipped(platform string) {
	m.messagesSkipped.WithLabelValues(platform).Inc()
}

func (m *Metrics) MessageReplied(platform string) {
	m.messagesReplied.WithLabelValues(platform).Inc()
}

func (m *Metrics) MessageFailed(platform string) {
	m.messagesFailed.WithLabelValues(platform).Inc()
}

func (m *Metrics) FallbackFailed(platform string) {
	m.fallbacksFailed.WithLabelValues(platform).Inc()
}

// ObserveGeneration records how long a generator call took, successful or not
func (m *Metrics) ObserveGeneration(generator string, d time.Duration) {
	m.generationDuration.WithLabelValues(generator).Observe(d.Seconds())
}

// GrpcRequestsInterceptor implements the gRPC unary interceptor signature
func (m *Metrics) GrpcRequestsInterceptor(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	start := time.Now()

	m.TotalGrpcRequestsCounter.Inc()
	resp, err := handler(ctx, req)

	m.GrpcDurationHistogram.Observe(time.Since(start).Seconds())
	m.IncrementGrpcResponseCounter(status.Code(err))

	return resp, err
}

// IncrementHTTPResponseCounter increments the counter for the given HTTP status code.
func (m *Metrics) IncrementHTTPResponseCounter(code int) {
	m.mu.Lock()
	c, ok := m.httpRequestsCounters[code]
	if !ok {
		c = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: opsSubsystem,
			Name:      fmt.Sprintf("total_%d_http_responses", code),
			Help:      fmt.Sprintf("Total %s HTTP responses returned", http.StatusText(code)),
		})
		m.reg.MustRegister(c)
		m.httpRequestsCounters[code] = c
	}
	m.mu.Unlock()
	c.Inc()
}

// IncrementGrpcResponseCounter increments the counter for the given gRPC status code.
func (m *Metrics) IncrementGrpcResponseCounter(code codes.Code) {
	m.mu.Lock()
	c, ok := m.grpcRequestsCounters[int(code)]
	if !ok {
		c = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: opsSubsystem,
			Name:      fmt.Sprintf("total_%d_grpc_responses", code),
			Help:      fmt.Sprintf("Total %s gRPC responses returned", code.String()),
		})
		m.reg.MustRegister(c)
		m.grpcRequestsCounters[int(code)] = c
	}
	m.mu.Unlock()
	c.Inc()
}

// HTTPMiddleware returns a chi-compatible middleware that tracks HTTP metrics
func (m *Metrics) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.TotalHTTPRequestsCounter.Inc()

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			m.HTTPDurationHistogram.Observe(time.Since(start).Seconds())
			m.IncrementHTTPResponseCounter(rw.statusCode)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
