package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/lewisedginton/whatsapp_relay/pkg/logger"
)

// ConfigCommand returns a command that validates the configuration and
// prints it with secrets masked
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Validate the configuration and print it with secrets redacted",
		Action:  configAction,
	}
}

func configAction(ctx *cli.Context) error {
	log := getLogger(ctx)

	cfg, err := loadConfig(ctx)
	if err != nil {
		log.Error("Configuration validation failed", logger.ErrorField(err))
		return err
	}

	out, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}

	log.Info("Configuration validation passed")
	fmt.Fprint(ctx.App.Writer, string(out))
	return nil
}
