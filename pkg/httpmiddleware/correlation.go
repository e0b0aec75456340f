package httpmiddleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/lewisedginton/whatsapp_relay/pkg/logger"
)

// CorrelationIDHeader carries the request correlation id in both directions
const CorrelationIDHeader = "X-Correlation-ID"

// CorrelationID makes sure every request has a correlation id. A client
// supplied id is kept only when it parses as a UUID; anything else is
// replaced. The id is echoed in the response and stored in the context.
func CorrelationID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(CorrelationIDHeader)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.New().String()
			}

			r.Header.Set(CorrelationIDHeader, id)
			w.Header().Set(CorrelationIDHeader, id)

			ctx := logger.WithCorrelationIDContext(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
