package slack

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"

	"github.com/lewisedginton/whatsapp_relay/pkg/logger"
)

// CommandHandler handles a specific slash command
type CommandHandler func(ctx context.Context, cmd slack.SlashCommand) (interface{}, error)

// CommandRegistry manages slash command handlers
type CommandRegistry struct {
	handlers map[string]CommandHandler
}

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		handlers: make(map[string]CommandHandler),
	}
}

// Register adds a command handler to the registry
func (r *CommandRegistry) Register(command string, handler CommandHandler) {
	r.handlers[command] = handler
}

// Handle processes a slash command event
func (r *CommandRegistry) Handle(ctx context.Context, cmd slack.SlashCommand) (interface{}, error) {
	handler, exists := r.handlers[cmd.Command]
	if !exists {
		return map[string]interface{}{
			"text": fmt.Sprintf("Unknown command: %s", cmd.Command),
		}, nil
	}

	return handler(ctx, cmd)
}

func handleHelpCommand(_ context.Context, _ slack.SlashCommand) (interface{}, error) {
	helpText := `*How to use me:*

• Send me a direct message, or mention me in a channel, and I will reply in the thread
• */help* - Show this help message`

	return map[string]interface{}{
		"text": helpText,
	}, nil
}

// setupCommands initialises the command registry with all available commands
func (c *Connector) setupCommands() {
	c.commands = NewCommandRegistry()
	c.commands.Register("/help", handleHelpCommand)
}

// handleSlashCommand processes incoming slash command events
func (c *Connector) handleSlashCommand(ctx context.Context, envelope socketmode.Event) {
	if envelope.Request == nil {
		return
	}

	cmd, ok := envelope.Data.(slack.SlashCommand)
	if !ok {
		c.log.Warn("Failed to parse slash command data", logger.StringField("data", fmt.Sprintf("%+v", envelope.Data)))
		c.socketMode.Ack(*envelope.Request)
		return
	}

	c.log.Info("Received slash command",
		logger.StringField("command", cmd.Command),
		logger.SenderField(cmd.UserID),
		logger.ChatIDField(cmd.ChannelID))

	response, err := c.commands.Handle(ctx, cmd)
	if err != nil {
		c.log.Error("Error handling command",
			logger.StringField("command", cmd.Command),
			logger.ErrorField(err))
		response = map[string]interface{}{
			"text": "An error occurred while processing your command.",
		}
	}

	c.socketMode.Ack(*envelope.Request, response)
}
