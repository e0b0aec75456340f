package logger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// CorrelationIDMetadataKey is the key used for correlation ID in gRPC metadata
const CorrelationIDMetadataKey = "x-correlation-id"

type contextKey string

const correlationIDContextKey contextKey = "correlation_id"

// WithCorrelationIDContext adds correlation ID to context
func WithCorrelationIDContext(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDContextKey, correlationID)
}

// GetCorrelationIDFromContext retrieves correlation ID from context
func GetCorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDContextKey).(string); ok {
		return id
	}
	return ""
}

// FromContext returns base enriched with the context's correlation ID, if any
func FromContext(ctx context.Context, base Logger) Logger {
	if id := GetCorrelationIDFromContext(ctx); id != "" {
		return base.WithCorrelationID(id)
	}
	return base
}

// EnsureCorrelationID makes sure ctx carries a correlation ID. Incoming gRPC
// metadata is honoured when it holds a valid UUID; otherwise a new one is minted.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	if id := GetCorrelationIDFromContext(ctx); id != "" {
		return ctx, id
	}

	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(CorrelationIDMetadataKey); len(values) > 0 {
			if _, err := uuid.Parse(values[0]); err == nil {
				return WithCorrelationIDContext(ctx, values[0]), values[0]
			}
		}
	}

	id := uuid.New().String()
	return WithCorrelationIDContext(ctx, id), id
}

// UnaryServerInterceptor logs every unary gRPC call with its duration and status code
func UnaryServerInterceptor(l Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		ctx, correlationID := EnsureCorrelationID(ctx)

		reqLogger := l.WithFields(
			StringField("grpc_method", info.FullMethod),
			CorrelationIDField(correlationID),
		)
		reqLogger.Debug("gRPC request started")

		resp, err := handler(ctx, req)

		fields := []LogField{
			DurationField("duration", time.Since(start)),
			StringField("grpc_code", status.Code(err).String()),
		}
		if err != nil {
			reqLogger.Error("gRPC request completed with error", append(fields, ErrorField(err))...)
		} else {
			reqLogger.Debug("gRPC request completed", fields...)
		}
		return resp, err
	}
}
