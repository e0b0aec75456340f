// Package relay turns inbound chat messages into model generated replies.
// Every connector hands its messages to the same Relay, which trims them,
// asks the Generator for an answer and replies through the connector. When
// anything goes wrong the sender gets a fixed apology instead.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lewisedginton/whatsapp_relay/internal/middleware"
	"github.com/lewisedginton/whatsapp_relay/pkg/logger"
	"github.com/lewisedginton/whatsapp_relay/pkg/prefixed_uuid"
)

// DefaultFallbackText is sent when a reply could not be generated or delivered.
// It reads "Sorry, there was a problem handling your request." in Hebrew.
const DefaultFallbackText = "מצטערים, הייתה בעיה בטיפול בבקשתך."

const (
	correlationPrefix = "relay"
	fallbackTimeout   = 15 * time.Second
)

var (
	// ErrEmptyResponse means the generator returned no text
	ErrEmptyResponse = errors.New("generator returned an empty response")

	// ErrClosed is returned by Dispatch once Wait has been called
	ErrClosed = errors.New("relay is shutting down")
)

type Config struct {
	Generator Generator
	Logger    logger.Logger

	// FallbackText overrides DefaultFallbackText
	FallbackText string

	// GenerationTimeout bounds each Generate call when positive
	GenerationTimeout time.Duration

	// Metrics is optional
	Metrics Recorder
}

// Relay is safe for concurrent use.
type Relay struct {
	generator    Generator
	log          logger.Logger
	fallbackText string
	metrics      Recorder

	handle middleware.HandlerFunc[*exchange]

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup

	// abort cancels in-flight messages when draining runs out of time
	abortCtx context.Context
	abort    context.CancelFunc
}

// exchange is one message travelling through the handler chain
type exchange struct {
	msg     Message
	replier Replier
}

func New(cfg Config) (*Relay, error) {
	if cfg.Generator == nil {
		return nil, errors.New("relay: generator is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("relay: logger is required")
	}

	r := &Relay{
		generator:    cfg.Generator,
		log:          cfg.Logger,
		fallbackText: cfg.FallbackText,
		metrics:      cfg.Metrics,
	}
	if strings.TrimSpace(r.fallbackText) == "" {
		r.fallbackText = DefaultFallbackText
	}
	if r.metrics == nil {
		r.metrics = nopRecorder{}
	}
	r.abortCtx, r.abort = context.WithCancel(context.Background())

	describe := func(ex *exchange) []logger.LogField {
		return []logger.LogField{
			logger.PlatformField(ex.msg.Platform),
			logger.ChatIDField(ex.msg.ChatID),
		}
	}
	r.handle = middleware.Chain(
		middleware.Recovery(r.log, describe),
		middleware.Logging(r.log, describe),
	)(r.respond(cfg.GenerationTimeout))

	return r, nil
}

// FallbackText returns the apology sent on failure
func (r *Relay) FallbackText() string {
	return r.fallbackText
}

// Handle runs the whole pipeline for msg synchronously. It never panics and
// never returns an error: failures are logged and answered with the fallback.
func (r *Relay) Handle(ctx context.Context, msg Message, replier Replier) {
	id := prefixed_uuid.New(correlationPrefix).String()
	ctx = logger.WithCorrelationIDContext(ctx, id)
	log := r.log.WithCorrelationID(id).WithFields(
		logger.PlatformField(msg.Platform),
		logger.ChatIDField(msg.ChatID),
		logger.MessageIDField(msg.ID),
		logger.SenderField(msg.SenderID),
	)

	r.metrics.MessageReceived(msg.Platform)

	body := strings.TrimSpace(msg.Body)
	if body == "" {
		log.Debug("Skipping empty message")
		r.metrics.MessageSkipped(msg.Platform)
		return
	}
	msg.Body = body

	log.Info(fmt.Sprintf("Received message from %s: %s", msg.SenderID, body),
		logger.StringField("sender_name", msg.SenderName))

	err := r.handle(ctx, &exchange{msg: msg, replier: replier})
	if err == nil {
		r.metrics.MessageReplied(msg.Platform)
		return
	}

	log.Error("Failed to answer message, sending fallback", logger.ErrorField(err))
	r.metrics.MessageFailed(msg.Platform)

	if ferr := r.sendFallback(ctx, replier); ferr != nil {
		log.Error("Failed to send fallback reply", logger.ErrorField(ferr))
		r.metrics.FallbackFailed(msg.Platform)
	}
}

// respond is the innermost handler: generate, then reply
func (r *Relay) respond(timeout time.Duration) middleware.HandlerFunc[*exchange] {
	return func(ctx context.Context, ex *exchange) error {
		text, err := r.generate(ctx, ex.msg.Body, timeout)
		if err != nil {
			return err
		}
		if err := ex.replier.Reply(ctx, text); err != nil {
			return fmt.Errorf("failed to send reply: %w", err)
		}
		return nil
	}
}

func (r *Relay) generate(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := r.generator.Generate(ctx, prompt)
	elapsed := time.Since(start)
	r.metrics.ObserveGeneration(r.generator.Name(), elapsed)

	logger.FromContext(ctx, r.log).Debug("Generation finished",
		logger.GeneratorField(r.generator.Name()),
		logger.DurationField("duration", elapsed),
	)

	switch {
	case err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "", fmt.Errorf("generation timed out after %s: %w", timeout, err)
	case err != nil:
		return "", fmt.Errorf("failed to generate reply with %s: %w", r.generator.Name(), err)
	case strings.TrimSpace(text) == "":
		return "", ErrEmptyResponse
	}
	return text, nil
}

// sendFallback delivers the apology exactly once. It outlives a cancelled
// ctx so a shutdown or timeout still gets an answer to the sender.
func (r *Relay) sendFallback(ctx context.Context, replier Replier) (err error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fallbackTimeout)
	defer cancel()

	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("fallback reply panicked: %v", v)
		}
	}()
	return replier.Reply(ctx, r.fallbackText)
}

// Dispatch handles msg on its own goroutine so a slow model never blocks the
// connector's receive loop. The message keeps running if ctx is cancelled;
// only Wait running out of time aborts it.
func (r *Relay) Dispatch(ctx context.Context, msg Message, replier Replier) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.log.Warn("Dropping message received during shutdown",
			logger.PlatformField(msg.Platform),
			logger.ChatIDField(msg.ChatID),
			logger.MessageIDField(msg.ID),
		)
		return ErrClosed
	}
	r.inflight.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.inflight.Done()

		hctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		defer cancel()
		stop := context.AfterFunc(r.abortCtx, cancel)
		defer stop()

		r.Handle(hctx, msg, replier)
	}()
	return nil
}

// Wait stops accepting new dispatches and blocks until every in-flight
// message is done. If ctx ends first the remaining messages are cancelled
// and ctx's error is returned.
func (r *Relay) Wait(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		r.abort()
		return ctx.Err()
	}
}
