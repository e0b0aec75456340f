// Package middleware provides composable wrappers around message handlers:
// panic recovery, logging and chaining.
package middleware

import "context"

// HandlerFunc processes one inbound item of type T.
type HandlerFunc[T any] func(ctx context.Context, in T) error

// Middleware wraps a HandlerFunc with extra behaviour.
type Middleware[T any] func(next HandlerFunc[T]) HandlerFunc[T]

// Chain composes middlewares so they run in the order given: the first one
// is the outermost.
func Chain[T any](mws ...Middleware[T]) Middleware[T] {
	return func(h HandlerFunc[T]) HandlerFunc[T] {
		for i := len(mws) - 1; i >= 0; i-- {
			if mws[i] != nil {
				h = mws[i](h)
			}
		}
		return h
	}
}
