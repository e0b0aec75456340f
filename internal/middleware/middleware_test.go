package middleware

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/whatsapp_relay/pkg/logger"
)

func testLogger(buf *bytes.Buffer) logger.Logger {
	return logger.NewLogger(logger.Config{Level: logger.DebugLevel, Format: "json", Output: buf})
}

func describe(s string) []logger.LogField {
	return []logger.LogField{logger.ChatIDField(s)}
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware[string] {
		return func(next HandlerFunc[string]) HandlerFunc[string] {
			return func(ctx context.Context, in string) error {
				order = append(order, name+">")
				err := next(ctx, in)
				order = append(order, "<"+name)
				return err
			}
		}
	}

	h := Chain(mark("a"), nil, mark("b"))(func(ctx context.Context, in string) error {
		order = append(order, "handler")
		return nil
	})

	require.NoError(t, h(context.Background(), "x"))
	assert.Equal(t, []string{"a>", "b>", "handler", "<b", "<a"}, order)
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	h := Recovery(testLogger(&buf), describe)(func(ctx context.Context, in string) error {
		panic("generator exploded")
	})

	err := h(context.Background(), "chat-1")

	var perr *PanicError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "generator exploded", perr.Value)
	assert.NotEmpty(t, perr.Stack)
	assert.Contains(t, buf.String(), "Message handler panic recovered")
	assert.Contains(t, buf.String(), `"chat_id":"chat-1"`)
	assert.Contains(t, buf.String(), "stack_trace")
}

func TestRecovery_PassesErrorsThrough(t *testing.T) {
	want := errors.New("plain failure")
	h := Recovery[string](logger.NewNop(), nil)(func(ctx context.Context, in string) error {
		return want
	})
	assert.ErrorIs(t, h(context.Background(), "x"), want)
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	log := testLogger(&buf)

	ok := Logging(log, describe)(func(ctx context.Context, in string) error { return nil })
	require.NoError(t, ok(logger.WithCorrelationIDContext(context.Background(), "corr-1"), "chat-1"))
	assert.Contains(t, buf.String(), "Message handled")
	assert.Contains(t, buf.String(), `"correlation_id":"corr-1"`)
	assert.Contains(t, buf.String(), `"duration"`)

	buf.Reset()
	failing := Logging(log, describe)(func(ctx context.Context, in string) error { return errors.New("nope") })
	assert.Error(t, failing(context.Background(), "chat-2"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	last := lines[len(lines)-1]
	assert.Contains(t, last, `"level":"warning"`)
	assert.Contains(t, last, "nope")
}
