package middleware

import (
	"context"
	"time"

	"github.com/lewisedginton/whatsapp_relay/pkg/logger"
)

// Logging logs the start and end of every handled item with its duration.
// Failures are logged at warn level; the caller decides how loud to be.
func Logging[T any](log logger.Logger, describe func(T) []logger.LogField) Middleware[T] {
	return func(next HandlerFunc[T]) HandlerFunc[T] {
		return func(ctx context.Context, in T) error {
			l := logger.FromContext(ctx, log)
			if describe != nil {
				l = l.WithFields(describe(in)...)
			}

			start := time.Now()
			l.Debug("Handling message")

			err := next(ctx, in)

			done := l.WithFields(logger.DurationField("duration", time.Since(start)))
			if err != nil {
				done.Warn("Message handling failed", logger.ErrorField(err))
				return err
			}
			done.Debug("Message handled")
			return nil
		}
	}
}
