// Package whatsapp connects the relay to a WhatsApp bridge process.
//
// The bridge owns the WhatsApp Web session and its persistence. This package
// only speaks the bridge's JSON protocol over a websocket: it receives
// qr, authenticated, ready, disconnected and message frames and sends reply
// frames back.
package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lewisedginton/whatsapp_relay/pkg/logger"
)

var (
	// ErrNotConnected is returned when there is no open bridge connection
	ErrNotConnected = errors.New("whatsapp bridge not connected")
	// ErrNotReady is returned while the bridge is connected but the
	// WhatsApp session is not ready yet
	ErrNotReady = errors.New("whatsapp client not ready")
)

// Frame types exchanged with the bridge
const (
	FrameQR            = "qr"
	FrameAuthenticated = "authenticated"
	FrameReady         = "ready"
	FrameDisconnected  = "disconnected"
	FrameMessage       = "message"
	FrameReply         = "reply"
)

// frame is the single wire shape for every bridge frame
type frame struct {
	Type string `json:"type"`

	QR     string `json:"qr,omitempty"`
	Reason string `json:"reason,omitempty"`

	ID        string `json:"id,omitempty"`
	From      string `json:"from,omitempty"`
	Chat      string `json:"chat,omitempty"`
	FromName  string `json:"from_name,omitempty"`
	Content   string `json:"content,omitempty"`
	FromMe    bool   `json:"from_me,omitempty"`
	IsGroup   bool   `json:"is_group,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`

	To       string `json:"to,omitempty"`
	QuotedID string `json:"quoted_id,omitempty"`
}

// InboundMessage is a chat message reported by the bridge
type InboundMessage struct {
	ID       string
	From     string
	Chat     string
	FromName string
	Content  string
	FromMe   bool
	IsGroup  bool
	SentAt   time.Time
}

// ClientConfig configures a bridge Client
type ClientConfig struct {
	URL   string
	Token string

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReconnectMin     time.Duration
	ReconnectMax     time.Duration

	Logger logger.Logger
}

// Client is a reconnecting websocket client for the bridge.
// Handlers run on the read loop and must not block.
type Client struct {
	cfg    ClientConfig
	log    logger.Logger
	dialer *websocket.Dialer

	mu    sync.Mutex
	conn  *websocket.Conn
	ready bool

	writeMu sync.Mutex

	handlersMu     sync.RWMutex
	onQR           func(code string)
	onReady        func()
	onMessage      func(InboundMessage)
	onDisconnected func(reason string)

	closeOnce sync.Once
	closed    chan struct{}
}

// NewClient validates cfg and returns an unconnected Client
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("whatsapp bridge url is required")
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = time.Second
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = max(30*time.Second, cfg.ReconnectMin)
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}

	return &Client{
		cfg: cfg,
		log: log.WithFields(logger.PlatformField("whatsapp")),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		closed: make(chan struct{}),
	}, nil
}

func (c *Client) OnQR(fn func(code string)) {
	c.handlersMu.Lock()
	c.onQR = fn
	c.handlersMu.Unlock()
}

func (c *Client) OnReady(fn func()) {
	c.handlersMu.Lock()
	c.onReady = fn
	c.handlersMu.Unlock()
}

func (c *Client) OnMessage(fn func(InboundMessage)) {
	c.handlersMu.Lock()
	c.onMessage = fn
	c.handlersMu.Unlock()
}

func (c *Client) OnDisconnected(fn func(reason string)) {
	c.handlersMu.Lock()
	c.onDisconnected = fn
	c.handlersMu.Unlock()
}

// Connect dials the bridge once. Any previous connection is replaced.
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.closed:
		return errors.New("whatsapp client closed")
	default:
	}

	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		return fmt.Errorf("dial whatsapp bridge %s: %w", c.cfg.URL, err)
	}

	c.mu.Lock()
	old := c.conn
	c.conn = conn
	c.ready = false
	c.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}

	c.log.Info("WhatsApp bridge connected", logger.StringField("url", c.cfg.URL))
	return nil
}

// Run reads frames until ctx is done or Close is called, reconnecting with
// exponential backoff whenever the connection drops.
func (c *Client) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, c.dropConn)
	defer stop()

	backoff := c.cfg.ReconnectMin
	for !c.done(ctx) {
		conn := c.currentConn()
		if conn == nil {
			if err := c.Connect(ctx); err != nil {
				if c.done(ctx) {
					break
				}
				c.log.Warn("WhatsApp bridge connection failed, retrying",
					logger.ErrorField(err),
					logger.DurationField("backoff", backoff),
				)
				if !c.sleep(ctx, backoff) {
					break
				}
				backoff = min(backoff*2, c.cfg.ReconnectMax)
				continue
			}
			backoff = c.cfg.ReconnectMin
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if !c.done(ctx) {
				c.log.Warn("WhatsApp bridge read failed, reconnecting", logger.ErrorField(err))
			}
			c.clearConn(conn)
			continue
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.log.Warn("Invalid frame from WhatsApp bridge", logger.ErrorField(err))
			continue
		}
		c.handleFrame(f)
	}

	c.dropConn()
	c.log.Info("WhatsApp bridge client stopped")
	return nil
}

func (c *Client) done(ctx context.Context) bool {
	select {
	case <-c.closed:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// sleep waits for d and reports false if the client stopped meanwhile
func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	case <-c.closed:
		return false
	}
}

func (c *Client) handleFrame(f frame) {
	c.handlersMu.RLock()
	onQR, onReady, onMessage, onDisconnected := c.onQR, c.onReady, c.onMessage, c.onDisconnected
	c.handlersMu.RUnlock()

	switch f.Type {
	case FrameQR:
		c.setReady(false)
		if onQR != nil && f.QR != "" {
			onQR(f.QR)
		}
	case FrameAuthenticated:
		c.log.Info("WhatsApp session authenticated")
	case FrameReady:
		c.setReady(true)
		if onReady != nil {
			onReady()
		}
	case FrameDisconnected:
		c.setReady(false)
		c.log.Warn("WhatsApp session disconnected", logger.StringField("reason", f.Reason))
		if onDisconnected != nil {
			onDisconnected(f.Reason)
		}
	case FrameMessage:
		if onMessage == nil || f.From == "" {
			return
		}
		msg := InboundMessage{
			ID:       f.ID,
			From:     f.From,
			Chat:     f.Chat,
			FromName: f.FromName,
			Content:  f.Content,
			FromMe:   f.FromMe,
			IsGroup:  f.IsGroup,
			SentAt:   time.Now(),
		}
		if msg.Chat == "" {
			msg.Chat = msg.From
		}
		if f.Timestamp > 0 {
			msg.SentAt = time.Unix(f.Timestamp, 0)
		}
		onMessage(msg)
	default:
		c.log.Debug("Ignoring unknown WhatsApp bridge frame", logger.StringField("type", f.Type))
	}
}

// Reply sends text to chat, quoting the message quotedID when set
func (c *Client) Reply(ctx context.Context, chat, quotedID, text string) error {
	c.mu.Lock()
	conn, ready := c.conn, c.ready
	c.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}
	if !ready {
		return ErrNotReady
	}

	deadline := time.Now().Add(c.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(frame{Type: FrameReply, To: chat, QuotedID: quotedID, Content: text}); err != nil {
		return fmt.Errorf("send whatsapp reply: %w", err)
	}
	return nil
}

// Ready reports whether replies can be sent right now
func (c *Client) Ready() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	if !c.ready {
		return ErrNotReady
	}
	return nil
}

// Close stops Run and closes the connection. It is safe to call repeatedly.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	c.dropConn()
	return nil
}

func (c *Client) currentConn() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Client) setReady(ready bool) {
	c.mu.Lock()
	c.ready = ready
	c.mu.Unlock()
}

// clearConn forgets conn if it is still the current connection
func (c *Client) clearConn(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.ready = false
	}
	c.mu.Unlock()
	_ = conn.Close()
}

func (c *Client) dropConn() {
	if conn := c.currentConn(); conn != nil {
		c.clearConn(conn)
	}
}
