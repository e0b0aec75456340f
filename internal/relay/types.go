package relay

import (
	"context"
	"time"
)

// Platform names used in logs and metrics labels
const (
	PlatformWhatsApp = "whatsapp"
	PlatformTelegram = "telegram"
	PlatformSlack    = "slack"
)

// Message is one inbound chat message, normalised across platforms.
type Message struct {
	ID         string
	Platform   string
	ChatID     string
	SenderID   string
	SenderName string
	Body       string
	ReceivedAt time.Time
}

// Replier answers the conversation a Message came from.
type Replier interface {
	Reply(ctx context.Context, text string) error
}

// ReplierFunc adapts a function to Replier.
type ReplierFunc func(ctx context.Context, text string) error

func (f ReplierFunc) Reply(ctx context.Context, text string) error {
	return f(ctx, text)
}

// Generator produces the reply text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

// Recorder receives pipeline counters. *metrics.Metrics satisfies it.
type Recorder interface {
	MessageReceived(platform string)
	MessageSkipped(platform string)
	MessageReplied(platform string)
	MessageFailed(platform string)
	FallbackFailed(platform string)
	ObserveGeneration(generator string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) MessageReceived(string)                   {}
func (nopRecorder) MessageSkipped(string)                    {}
func (nopRecorder) MessageReplied(string)                    {}
func (nopRecorder) MessageFailed(string)                     {}
func (nopRecorder) FallbackFailed(string)                    {}
func (nopRecorder) ObserveGeneration(string, time.Duration) {}

// Dispatcher accepts messages from connectors. *Relay satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message, replier Replier) error
}
