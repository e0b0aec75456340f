package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mdp/qrterminal/v3"

	"github.com/lewisedginton/whatsapp_relay/internal/config"
	"github.com/lewisedginton/whatsapp_relay/internal/relay"
	"github.com/lewisedginton/whatsapp_relay/pkg/logger"
)

// ScanInstruction is printed under every rendered pairing code
const ScanInstruction = "Scan the QR code above to connect the bot to your WhatsApp account."

// Connector feeds WhatsApp messages from the bridge into the relay
type Connector struct {
	client     *Client
	dispatcher relay.Dispatcher
	log        logger.Logger

	showQR       bool
	ignoreGroups bool
	qrOut        io.Writer
}

// Option customises a Connector
type Option func(*Connector)

// WithQRWriter sets where pairing codes are rendered, os.Stdout by default
func WithQRWriter(w io.Writer) Option {
	return func(c *Connector) {
		c.qrOut = w
	}
}

// NewConnector creates the bridge client and registers the qr, ready and
// message handlers on it
func NewConnector(cfg config.WhatsAppConfig, dispatcher relay.Dispatcher, log logger.Logger, opts ...Option) (*Connector, error) {
	if dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if log == nil {
		log = logger.NewNop()
	}

	client, err := NewClient(ClientConfig{
		URL:              cfg.BridgeURL,
		Token:            cfg.BridgeToken,
		HandshakeTimeout: cfg.HandshakeTimeout,
		WriteTimeout:     cfg.WriteTimeout,
		ReconnectMin:     cfg.ReconnectMin,
		ReconnectMax:     cfg.ReconnectMax,
		Logger:           log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create whatsapp client: %w", err)
	}

	c := &Connector{
		client:       client,
		dispatcher:   dispatcher,
		log:          log.WithFields(logger.PlatformField(relay.PlatformWhatsApp)),
		showQR:       cfg.ShowQR,
		ignoreGroups: cfg.IgnoreGroups,
		qrOut:        os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}

	client.OnQR(c.handleQR)
	client.OnReady(c.handleReady)
	client.OnDisconnected(c.handleDisconnected)

	return c, nil
}

// Start runs the bridge client until ctx is cancelled or Stop is called.
// Messages are dispatched with ctx.
func (c *Connector) Start(ctx context.Context) error {
	c.client.OnMessage(func(m InboundMessage) {
		c.handleMessage(ctx, m)
	})

	c.log.Info("Starting WhatsApp connector", logger.StringField("bridge_url", c.client.cfg.URL))
	return c.client.Run(ctx)
}

// Stop closes the bridge connection
func (c *Connector) Stop() error {
	c.log.Info("Stopping WhatsApp connector...")
	return c.client.Close()
}

// Ready is nil once the bridge reports the WhatsApp session as ready
func (c *Connector) Ready() error {
	return c.client.Ready()
}

func (c *Connector) Name() string {
	return relay.PlatformWhatsApp
}

func (c *Connector) handleQR(code string) {
	c.log.Info("WhatsApp pairing code received")
	if !c.showQR {
		return
	}
	qrterminal.GenerateHalfBlock(code, qrterminal.L, c.qrOut)
	fmt.Fprintln(c.qrOut, ScanInstruction)
}

func (c *Connector) handleReady() {
	c.log.Info("WhatsApp client is ready. Listening for messages...")
}

func (c *Connector) handleDisconnected(reason string) {
	c.log.Warn("WhatsApp client disconnected, waiting for the bridge to recover",
		logger.StringField("reason", reason))
}

func (c *Connector) handleMessage(ctx context.Context, m InboundMessage) {
	if m.FromMe {
		return
	}
	if m.IsGroup && c.ignoreGroups {
		c.log.Debug("Skipping group message",
			logger.ChatIDField(m.Chat),
			logger.MessageIDField(m.ID),
		)
		return
	}

	msg := relay.Message{
		ID:         m.ID,
		Platform:   relay.PlatformWhatsApp,
		ChatID:     m.Chat,
		SenderID:   m.From,
		SenderName: m.FromName,
		Body:       m.Content,
		ReceivedAt: m.SentAt,
	}
	replier := relay.ReplierFunc(func(ctx context.Context, text string) error {
		return c.client.Reply(ctx, m.Chat, m.ID, text)
	})

	if err := c.dispatcher.Dispatch(ctx, msg, replier); err != nil {
		c.log.Warn("WhatsApp message not dispatched",
			logger.MessageIDField(m.ID),
			logger.ErrorField(err),
		)
	}
}
