package whatsapp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// fakeBridge is a websocket server that plays the WhatsApp bridge
type fakeBridge struct {
	t        *testing.T
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu      sync.Mutex
	conn    *websocket.Conn
	conns   int
	headers http.Header

	connected chan struct{}
	received  chan frame
}

func newFakeBridge(t *testing.T) *fakeBridge {
	t.Helper()
	b := &fakeBridge{
		t:         t,
		connected: make(chan struct{}, 8),
		received:  make(chan frame, 16),
	}
	b.srv = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.close)
	return b
}

func (b *fakeBridge) url() string {
	return "ws" + strings.TrimPrefix(b.srv.URL, "http") + "/ws"
}

func (b *fakeBridge) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	b.mu.Lock()
	b.conn = conn
	b.conns++
	b.headers = r.Header.Clone()
	b.mu.Unlock()
	b.connected <- struct{}{}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var f frame
		if json.Unmarshal(data, &f) == nil {
			b.received <- f
		}
	}
}

func (b *fakeBridge) waitConnected() {
	b.t.Helper()
	select {
	case <-b.connected:
	case <-time.After(5 * time.Second):
		b.t.Fatal("client never connected to the bridge")
	}
}

func (b *fakeBridge) send(f frame) {
	b.t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotNil(b.t, b.conn, "no client connected")
	require.NoError(b.t, b.conn.WriteJSON(f))
}

// drop closes the current connection from the bridge side
func (b *fakeBridge) drop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		_ = b.conn.Close()
		b.conn = nil
	}
}

func (b *fakeBridge) connectionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conns
}

func (b *fakeBridge) header(key string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.headers.Get(key)
}

func (b *fakeBridge) nextFrame() frame {
	b.t.Helper()
	select {
	case f := <-b.received:
		return f
	case <-time.After(5 * time.Second):
		b.t.Fatal("bridge received no frame")
		return frame{}
	}
}

func (b *fakeBridge) assertNoFrame(wait time.Duration) {
	b.t.Helper()
	select {
	case f := <-b.received:
		b.t.Fatalf("unexpected frame sent to bridge: %+v", f)
	case <-time.After(wait):
	}
}

func (b *fakeBridge) close() {
	b.drop()
	b.srv.Close()
}
