package httpmiddleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/lewisedginton/whatsapp_relay/pkg/logger"
)

// HTTPLogger logs one line per served request
type HTTPLogger struct {
	logger logger.Logger
	quiet  map[string]struct{}
}

// NewHTTPLogger creates the logging middleware. Requests for quietPaths are
// logged at debug level instead of info.
func NewHTTPLogger(log logger.Logger, quietPaths ...string) *HTTPLogger {
	quiet := make(map[string]struct{}, len(quietPaths))
	for _, p := range quietPaths {
		quiet[p] = struct{}{}
	}
	return &HTTPLogger{logger: log, quiet: quiet}
}

func (h *HTTPLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		log := h.RequestLogger(r).WithFields(
			logger.HTTPStatusField(status),
			logger.IntField("response_bytes", ww.BytesWritten()),
			logger.DurationField("duration", time.Since(start)),
		)

		switch _, quiet := h.quiet[r.URL.Path]; {
		case status >= http.StatusInternalServerError:
			log.Warn("HTTP request failed")
		case quiet:
			log.Debug("HTTP request served")
		default:
			log.Info("HTTP request served")
		}
	})
}

// RequestLogger returns a logger carrying the request's fields
func (h *HTTPLogger) RequestLogger(r *http.Request) logger.Logger {
	return h.logger.WithFields(
		logger.ClientIPField(r.RemoteAddr),
		logger.HTTPMethodField(r.Method),
		logger.HTTPPathField(r.URL.Path),
		logger.CorrelationIDField(r.Header.Get(CorrelationIDHeader)),
	)
}
