// Package slack feeds Slack direct messages and app mentions into the relay
// over Socket Mode.
package slack

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/lewisedginton/whatsapp_relay/internal/relay"
	"github.com/lewisedginton/whatsapp_relay/pkg/logger"
)

// ErrNotConnected is reported by Ready until Socket Mode is connected
var ErrNotConnected = errors.New("slack socket mode not connected")

var mentionPattern = regexp.MustCompile(`<@[A-Z0-9]+(\|[^>]*)?>`)

// Connector represents the Slack Socket Mode connector
type Connector struct {
	client     *slack.Client
	socketMode *socketmode.Client
	dispatcher relay.Dispatcher
	commands   *CommandRegistry
	log        logger.Logger

	mu        sync.Mutex
	connected bool
	cancel    context.CancelFunc
}

// Config holds configuration for the Slack connector
type Config struct {
	BotToken string // xoxb-*
	AppToken string // xapp-*
	Debug    bool

	// APIURL overrides the Slack Web API endpoint
	APIURL string
}

// NewConnector creates a new Slack connector feeding dispatcher
func NewConnector(cfg Config, dispatcher relay.Dispatcher, log logger.Logger) (*Connector, error) {
	if !strings.HasPrefix(cfg.BotToken, "xoxb-") {
		return nil, fmt.Errorf("invalid bot token format, expected xoxb-*")
	}
	if !strings.HasPrefix(cfg.AppToken, "xapp-") {
		return nil, fmt.Errorf("invalid app token format, expected xapp-*")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if log == nil {
		log = logger.NewNop()
	}

	opts := []slack.Option{
		slack.OptionAppLevelToken(cfg.AppToken),
		slack.OptionDebug(cfg.Debug),
	}
	if cfg.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(cfg.APIURL))
	}
	client := slack.New(cfg.BotToken, opts...)

	c := &Connector{
		client:     client,
		socketMode: socketmode.New(client, socketmode.OptionDebug(cfg.Debug)),
		dispatcher: dispatcher,
		log:        log.WithFields(logger.PlatformField(relay.PlatformSlack)),
	}
	c.setupCommands()
	return c, nil
}

// Start runs the Socket Mode connection until ctx is cancelled or Stop is called
func (c *Connector) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	defer func() {
		cancel()
		c.setConnected(false)
	}()

	c.log.Info("Starting Slack Socket Mode connector...")
	go c.eventLoop(ctx)

	if err := c.socketMode.RunContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("slack socket mode: %w", err)
	}
	return nil
}

// Stop ends the Socket Mode connection
func (c *Connector) Stop() error {
	c.log.Info("Stopping Slack connector...")
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

// Ready is nil while Socket Mode is connected
func (c *Connector) Ready() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return ErrNotConnected
	}
	return nil
}

func (c *Connector) Name() string {
	return relay.PlatformSlack
}

func (c *Connector) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

func (c *Connector) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case envelope, ok := <-c.socketMode.Events:
			if !ok {
				return
			}
			c.handleEnvelope(ctx, envelope)
		}
	}
}

func (c *Connector) handleEnvelope(ctx context.Context, envelope socketmode.Event) {
	switch envelope.Type {
	case socketmode.EventTypeConnecting:
		c.log.Info("Connecting to Slack with Socket Mode...")

	case socketmode.EventTypeConnectionError:
		c.setConnected(false)
		c.log.Warn("Slack connection failed", logger.StringField("data", fmt.Sprintf("%v", envelope.Data)))

	case socketmode.EventTypeConnected:
		c.setConnected(true)
		c.log.Info("Connected to Slack with Socket Mode")

	case socketmode.EventTypeHello:

	case socketmode.EventTypeEventsAPI:
		event, ok := envelope.Data.(slackevents.EventsAPIEvent)
		if envelope.Request != nil {
			c.socketMode.Ack(*envelope.Request)
		}
		if !ok {
			c.log.Debug("Ignored malformed events API envelope")
			return
		}
		c.handleEvent(ctx, event)

	case socketmode.EventTypeSlashCommand:
		c.handleSlashCommand(ctx, envelope)

	case socketmode.EventTypeInteractive:
		if envelope.Request != nil {
			c.socketMode.Ack(*envelope.Request)
		}

	default:
		c.log.Debug("Unsupported Slack event type", logger.StringField("type", string(envelope.Type)))
	}
}

// handleEvent routes events API callbacks to the relay
func (c *Connector) handleEvent(ctx context.Context, event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}

	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		c.handleMessageEvent(ctx, ev)
	case *slackevents.AppMentionEvent:
		c.handleAppMentionEvent(ctx, ev)
	}
}

// handleMessageEvent relays direct messages to the bot
func (c *Connector) handleMessageEvent(ctx context.Context, ev *slackevents.MessageEvent) {
	// Skip bot messages and edits, deletes and other subtypes
	if ev.BotID != "" || ev.SubType != "" {
		return
	}
	if ev.ChannelType != "im" && !strings.HasPrefix(ev.Channel, "D") {
		return
	}

	var attachments []slack.Attachment
	if ev.Message != nil {
		attachments = ev.Message.Attachments
	}
	c.dispatch(ctx, ev.Channel, ev.User, ev.TimeStamp, ev.ThreadTimeStamp,
		extractMessageText(ev.Text, attachments))
}

// handleAppMentionEvent relays @bot mentions in channels
func (c *Connector) handleAppMentionEvent(ctx context.Context, ev *slackevents.AppMentionEvent) {
	if ev.BotID != "" {
		return
	}
	c.dispatch(ctx, ev.Channel, ev.User, ev.TimeStamp, ev.ThreadTimeStamp, removeMentions(ev.Text))
}

// dispatch hands a message to the relay; replies go to the message's thread
func (c *Connector) dispatch(ctx context.Context, channel, user, ts, threadTS, text string) {
	if threadTS == "" {
		threadTS = ts
	}

	replier := relay.ReplierFunc(func(ctx context.Context, reply string) error {
		_, _, err := c.client.PostMessageContext(ctx, channel,
			slack.MsgOptionText(reply, false),
			slack.MsgOptionTS(threadTS),
		)
		if err != nil {
			return fmt.Errorf("post slack message: %w", err)
		}
		return nil
	})

	err := c.dispatcher.Dispatch(ctx, relay.Message{
		ID:         ts,
		Platform:   relay.PlatformSlack,
		ChatID:     channel,
		SenderID:   user,
		Body:       text,
		ReceivedAt: parseTimestamp(ts),
	}, replier)
	if err != nil {
		c.log.Warn("Slack message not dispatched",
			logger.ChatIDField(channel),
			logger.MessageIDField(ts),
			logger.ErrorField(err),
		)
	}
}

// removeMentions strips <@U123> style mentions from text
func removeMentions(text string) string {
	return strings.TrimSpace(mentionPattern.ReplaceAllString(text, ""))
}

// extractMessageText returns the message text, or the text of its
// attachments for messages that carry everything in attachments
func extractMessageText(text string, attachments []slack.Attachment) string {
	if strings.TrimSpace(text) != "" {
		return text
	}

	var parts []string
	for _, a := range attachments {
		before := len(parts)
		for _, s := range []string{a.Pretext, a.Title, a.Text} {
			if s != "" {
				parts = append(parts, s)
			}
		}
		for _, f := range a.Fields {
			switch {
			case f.Title != "" && f.Value != "":
				parts = append(parts, f.Title+": "+f.Value)
			case f.Value != "":
				parts = append(parts, f.Value)
			}
		}
		if len(parts) == before && a.Fallback != "" {
			parts = append(parts, a.Fallback)
		}
	}
	return strings.Join(parts, "\n")
}

// parseTimestamp converts a Slack "1700000000.000100" timestamp
func parseTimestamp(ts string) time.Time {
	secs, _, _ := strings.Cut(ts, ".")
	n, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return time.Now()
	}
	return time.Unix(n, 0)
}
