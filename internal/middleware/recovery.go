package middleware

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/lewisedginton/whatsapp_relay/pkg/logger"
)

// PanicError is returned by Recovery when the wrapped handler panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Recovery turns a panic in the wrapped handler into a *PanicError and logs
// it with the stack trace. Fields returned by describe are added to the log line.
func Recovery[T any](log logger.Logger, describe func(T) []logger.LogField) Middleware[T] {
	return func(next HandlerFunc[T]) HandlerFunc[T] {
		return func(ctx context.Context, in T) (err error) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				perr := &PanicError{Value: v, Stack: debug.Stack()}

				fields := []logger.LogField{
					logger.StringField("panic_error", fmt.Sprintf("%v", v)),
					logger.StringField("stack_trace", string(perr.Stack)),
				}
				if describe != nil {
					fields = append(fields, describe(in)...)
				}
				logger.FromContext(ctx, log).Error("Message handler panic recovered", fields...)

				err = perr
			}()
			return next(ctx, in)
		}
	}
}
