package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/whatsapp_relay/internal/server"
	"github.com/lewisedginton/whatsapp_relay/pkg/logger"
)

// RunCommand returns the command that starts the relay
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Connect to WhatsApp and the other enabled platforms and relay messages",
		Action:  runAction,
	}
}

func runAction(ctx *cli.Context) error {
	log := getLogger(ctx)

	// Configuration problems are fatal before any client is constructed
	cfg, err := loadConfig(ctx)
	if err != nil {
		log.Error("Configuration error", logger.ErrorField(err))
		return err
	}

	log = logger.NewLogger(cfg.LoggerConfig())
	cfg.LogConfig(log)

	runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := server.New(runCtx, cfg, log)
	if err != nil {
		log.Error("Failed to create relay", logger.ErrorField(err))
		return fmt.Errorf("failed to create relay: %w", err)
	}

	if err := s.Run(runCtx); err != nil {
		return fmt.Errorf("relay stopped: %w", err)
	}
	log.Info("Relay exited gracefully")
	return nil
}
