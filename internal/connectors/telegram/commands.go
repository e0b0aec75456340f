package telegram

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/lewisedginton/whatsapp_relay/pkg/logger"
)

const helpText = "Send me any message and I will answer it.\n\n/help - Show this help message"

// CommandHandler handles a specific Telegram bot command
type CommandHandler func(ctx context.Context, update *models.Update) (string, error)

// CommandRegistry manages bot command handlers
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

// Handle runs the handler for the command in the update's text. Commands
// addressed to a bot ("/help@my_bot") match their plain form.
func (r *CommandRegistry) Handle(ctx context.Context, update *models.Update) (string, error) {
	if update.Message == nil || !r.IsCommand(update.Message.Text) {
		return "", nil
	}

	command := strings.Fields(update.Message.Text)[0]
	if at := strings.Index(command, "@"); at > 0 {
		command = command[:at]
	}

	handler, exists := r.handlers[command]
	if !exists {
		return "Unknown command: " + command, nil
	}
	return handler(ctx, update)
}

// IsCommand checks if a message is a command
func (r *CommandRegistry) IsCommand(text string) bool {
	return strings.HasPrefix(text, "/") && len(strings.TrimSpace(text)) > 1
}

func handleHelpCommand(context.Context, *models.Update) (string, error) {
	return helpText, nil
}

// setupCommands initializes the command registry with all available commands
func (c *Connector) setupCommands() {
	c.commands = NewCommandRegistry()
	c.commands.Register("/start", handleHelpCommand)
	c.commands.Register("/help", handleHelpCommand)
}

// handleCommand answers a command directly, without the relay
func (c *Connector) handleCommand(ctx context.Context, b *bot.Bot, update *models.Update) error {
	c.log.Info("Processing Telegram command",
		logger.ChatIDField(strconv.FormatInt(update.Message.Chat.ID, 10)),
		logger.StringField("command", update.Message.Text),
	)

	response, err := c.commands.Handle(ctx, update)
	if err != nil {
		c.log.Error("Error handling command", logger.ErrorField(err))
		response = "An error occurred while processing your command."
	}
	if response == "" {
		return nil
	}

	_, err = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   response,
	})
	return err
}
