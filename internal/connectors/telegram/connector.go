// Package telegram feeds Telegram messages into the relay using long polling.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/lewisedginton/whatsapp_relay/internal/relay"
	"github.com/lewisedginton/whatsapp_relay/pkg/logger"
)

// ErrNotRunning is reported by Ready before Start or after Stop
var ErrNotRunning = errors.New("telegram connector not running")

// Connector represents the Telegram connector
type Connector struct {
	bot        *bot.Bot
	dispatcher relay.Dispatcher
	commands   *CommandRegistry
	log        logger.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// Config holds configuration for the Telegram connector
type Config struct {
	BotToken string // Bot token from @BotFather
	Debug    bool   // Enable debug logging

	// Options are passed to bot.New after the connector's own
	Options []bot.Option
}

// NewConnector creates a new Telegram connector feeding dispatcher
func NewConnector(cfg Config, dispatcher relay.Dispatcher, log logger.Logger) (*Connector, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if log == nil {
		log = logger.NewNop()
	}

	c := &Connector{
		dispatcher: dispatcher,
		log:        log.WithFields(logger.PlatformField(relay.PlatformTelegram)),
	}
	c.setupCommands()

	opts := []bot.Option{
		bot.WithDefaultHandler(c.handleUpdate),
	}
	if cfg.Debug {
		opts = append(opts, bot.WithDebug())
	}
	opts = append(opts, cfg.Options...)

	b, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	c.bot = b

	c.log.Info("Telegram bot initialized successfully")
	return c, nil
}

// Start polls for updates until ctx is cancelled or Stop is called
func (c *Connector) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.running = true
	c.cancel = cancel
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		cancel()
	}()

	c.log.Info("Starting Telegram bot polling...")
	c.bot.Start(ctx)
	return nil
}

// Stop ends polling started by Start
func (c *Connector) Stop() error {
	c.log.Info("Stopping Telegram connector...")
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

// Ready is nil while polling is running
func (c *Connector) Ready() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return ErrNotRunning
	}
	return nil
}

func (c *Connector) Name() string {
	return relay.PlatformTelegram
}

// handleUpdate processes all incoming Telegram updates
func (c *Connector) handleUpdate(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" {
		return
	}

	// Skip messages from bots to avoid loops
	if msg.From == nil || msg.From.IsBot {
		return
	}

	if c.commands.IsCommand(msg.Text) {
		if err := c.handleCommand(ctx, b, update); err != nil {
			c.log.Warn("Failed to answer Telegram command", logger.ErrorField(err))
		}
		return
	}

	senderName := msg.From.Username
	if senderName == "" {
		senderName = msg.From.FirstName
	}

	chatID := msg.Chat.ID
	messageID := msg.ID
	replier := relay.ReplierFunc(func(ctx context.Context, text string) error {
		_, err := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:          chatID,
			Text:            text,
			ReplyParameters: &models.ReplyParameters{MessageID: messageID},
		})
		if err != nil {
			return fmt.Errorf("send telegram message: %w", err)
		}
		return nil
	})

	err := c.dispatcher.Dispatch(ctx, relay.Message{
		ID:         strconv.Itoa(messageID),
		Platform:   relay.PlatformTelegram,
		ChatID:     strconv.FormatInt(chatID, 10),
		SenderID:   strconv.FormatInt(msg.From.ID, 10),
		SenderName: senderName,
		Body:       msg.Text,
		ReceivedAt: time.Unix(int64(msg.Date), 0),
	}, replier)
	if err != nil {
		c.log.Warn("Telegram message not dispatched",
			logger.MessageIDField(strconv.Itoa(messageID)),
			logger.ErrorField(err),
		)
	}
}
