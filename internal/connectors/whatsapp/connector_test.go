package whatsapp

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/whatsapp_relay/internal/config"
	"github.com/lewisedginton/whatsapp_relay/internal/relay"
	"github.com/lewisedginton/whatsapp_relay/pkg/logger"
)

type stubGenerator struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	err     error
}

func (g *stubGenerator) Name() string { return "stub" }

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	return g.reply, g.err
}

func (g *stubGenerator) calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

type recordingDispatcher struct {
	mu       sync.Mutex
	messages []relay.Message
	err      error
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, msg relay.Message, replier relay.Replier) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, msg)
	return d.err
}

func (d *recordingDispatcher) dispatched() []relay.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]relay.Message(nil), d.messages...)
}

func testConfig(url string) config.WhatsAppConfig {
	return config.WhatsAppConfig{
		Enabled:          true,
		BridgeURL:        url,
		HandshakeTimeout: time.Second,
		WriteTimeout:     time.Second,
		ReconnectMin:     10 * time.Millisecond,
		ReconnectMax:     50 * time.Millisecond,
		ShowQR:           true,
	}
}

// startConnector runs c.Start in the background and waits for the bridge to
// see the connection and for the session to be ready.
func startConnector(t *testing.T, c *Connector, bridge *fakeBridge) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("connector did not stop")
		}
	})

	bridge.waitConnected()
	bridge.send(frame{Type: FrameReady})
	require.Eventually(t, func() bool { return c.Ready() == nil }, 5*time.Second, 10*time.Millisecond)
}

func TestNewConnector_Validation(t *testing.T) {
	_, err := NewConnector(testConfig("ws://127.0.0.1:1/ws"), nil, logger.NewNop())
	assert.Error(t, err, "dispatcher is required")

	_, err = NewConnector(testConfig(""), &recordingDispatcher{}, logger.NewNop())
	assert.Error(t, err, "bridge url is required")
}

func TestConnector_RendersQR(t *testing.T) {
	var out bytes.Buffer
	c, err := NewConnector(testConfig("ws://127.0.0.1:1/ws"), &recordingDispatcher{}, logger.NewNop(), WithQRWriter(&out))
	require.NoError(t, err)

	c.handleQR("2@pairing-code")

	assert.True(t, strings.HasSuffix(out.String(), ScanInstruction+"\n"))
	assert.Greater(t, strings.Count(out.String(), "\n"), 10, "a QR code spans many lines")
}

func TestConnector_QRDisabled(t *testing.T) {
	var out bytes.Buffer
	cfg := testConfig("ws://127.0.0.1:1/ws")
	cfg.ShowQR = false
	c, err := NewConnector(cfg, &recordingDispatcher{}, logger.NewNop(), WithQRWriter(&out))
	require.NoError(t, err)

	c.handleQR("2@pairing-code")
	assert.Empty(t, out.String())
}

func TestConnector_ReadyLogLine(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger(logger.Config{Level: logger.InfoLevel, Output: &buf})
	c, err := NewConnector(testConfig("ws://127.0.0.1:1/ws"), &recordingDispatcher{}, log)
	require.NoError(t, err)

	c.handleReady()
	assert.Contains(t, buf.String(), "WhatsApp client is ready. Listening for messages...")
}

func TestConnector_MessageFiltering(t *testing.T) {
	tests := []struct {
		name         string
		ignoreGroups bool
		msg          InboundMessage
		wantDispatch bool
	}{
		{
			name:         "direct message",
			msg:          InboundMessage{ID: "1", From: "a@c.us", Chat: "a@c.us", Content: "Hello"},
			wantDispatch: true,
		},
		{
			name: "own message",
			msg:  InboundMessage{ID: "2", From: "me@c.us", Chat: "a@c.us", Content: "Hello", FromMe: true},
		},
		{
			name:         "group message allowed",
			msg:          InboundMessage{ID: "3", From: "a@c.us", Chat: "g@g.us", Content: "Hello", IsGroup: true},
			wantDispatch: true,
		},
		{
			name:         "group message ignored",
			ignoreGroups: true,
			msg:          InboundMessage{ID: "4", From: "a@c.us", Chat: "g@g.us", Content: "Hello", IsGroup: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig("ws://127.0.0.1:1/ws")
			cfg.IgnoreGroups = tt.ignoreGroups
			d := &recordingDispatcher{}
			c, err := NewConnector(cfg, d, logger.NewNop())
			require.NoError(t, err)

			c.handleMessage(context.Background(), tt.msg)

			got := d.dispatched()
			if !tt.wantDispatch {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, relay.PlatformWhatsApp, got[0].Platform)
			assert.Equal(t, tt.msg.ID, got[0].ID)
			assert.Equal(t, tt.msg.Chat, got[0].ChatID)
			assert.Equal(t, tt.msg.From, got[0].SenderID)
			assert.Equal(t, "Hello", got[0].Body)
		})
	}
}

func TestConnector_DispatchErrorIsLogged(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger(logger.Config{Level: logger.InfoLevel, Output: &buf})
	d := &recordingDispatcher{err: relay.ErrClosed}
	c, err := NewConnector(testConfig("ws://127.0.0.1:1/ws"), d, log)
	require.NoError(t, err)

	c.handleMessage(context.Background(), InboundMessage{ID: "1", From: "a@c.us", Chat: "a@c.us", Content: "Hello"})
	assert.Contains(t, buf.String(), "WhatsApp message not dispatched")
}

func TestConnector_EndToEnd(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		gen       *stubGenerator
		wantReply string
		wantCalls []string
	}{
		{
			name:      "reply with generated text",
			body:      "  Hello  ",
			gen:       &stubGenerator{reply: "Hi there!"},
			wantReply: "Hi there!",
			wantCalls: []string{"Hello"},
		},
		{
			name:      "fallback on generation failure",
			body:      "Hello",
			gen:       &stubGenerator{err: errors.New("quota exceeded")},
			wantReply: relay.DefaultFallbackText,
			wantCalls: []string{"Hello"},
		},
		{
			name: "whitespace body is ignored",
			body: " \n\t ",
			gen:  &stubGenerator{reply: "unused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bridge := newFakeBridge(t)
			r, err := relay.New(relay.Config{Generator: tt.gen, Logger: logger.NewNop()})
			require.NoError(t, err)

			c, err := NewConnector(testConfig(bridge.url()), r, logger.NewNop())
			require.NoError(t, err)
			startConnector(t, c, bridge)

			bridge.send(frame{Type: FrameMessage, ID: "MSG1", From: "972500000000@c.us", Content: tt.body})

			if tt.wantReply == "" {
				bridge.assertNoFrame(200 * time.Millisecond)
				require.NoError(t, r.Wait(context.Background()))
				assert.Empty(t, tt.gen.calls())
				return
			}

			f := bridge.nextFrame()
			assert.Equal(t, FrameReply, f.Type)
			assert.Equal(t, "972500000000@c.us", f.To)
			assert.Equal(t, "MSG1", f.QuotedID)
			assert.Equal(t, tt.wantReply, f.Content)

			require.NoError(t, r.Wait(context.Background()))
			assert.Equal(t, tt.wantCalls, tt.gen.calls())
			bridge.assertNoFrame(100 * time.Millisecond)
		})
	}
}

func TestConnector_Stop(t *testing.T) {
	bridge := newFakeBridge(t)
	c, err := NewConnector(testConfig(bridge.url()), &recordingDispatcher{}, logger.NewNop())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- c.Start(context.Background()) }()
	bridge.waitConnected()

	require.NoError(t, c.Stop())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
	assert.ErrorIs(t, c.Ready(), ErrNotConnected)
	assert.Equal(t, "whatsapp", c.Name())
}
