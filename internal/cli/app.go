// Package cli holds the relay's command line commands.
package cli

import (
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/whatsapp_relay/pkg/logger"
)

// NewApp builds the CLI application. Running it without a command starts
// the relay.
func NewApp(version string) *cli.App {
	return &cli.App{
		Name:    "whatsapp-relay",
		Usage:   "Answer WhatsApp messages with a language model",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config-file",
				Value:   "",
				Usage:   "Path to an optional YAML configuration file",
				EnvVars: []string{"CONFIG_FILE"},
			},
			&cli.StringSliceFlag{
				Name:  "env-file",
				Value: cli.NewStringSlice(".env"),
				Usage: "Dotenv files loaded before reading the environment (missing files are ignored)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override LOG_LEVEL (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Override LOG_FORMAT (json, text)",
			},
		},
		Before: func(ctx *cli.Context) error {
			level := ctx.String("log-level")
			if level == "" {
				level = os.Getenv("LOG_LEVEL")
			}
			format := ctx.String("log-format")
			if format == "" {
				format = os.Getenv("LOG_FORMAT")
			}

			var out io.Writer = os.Stdout
			if ctx.App.ErrWriter != nil {
				out = ctx.App.ErrWriter
			}
			log := logger.NewLogger(logger.Config{
				Level:   logger.ParseLevel(level),
				Format:  format,
				Service: "whatsapp-relay",
				Output:  out,
			})

			ctx.App.Metadata = map[string]interface{}{
				"logger": log,
			}
			return nil
		},
		Action: runAction,
		Commands: []*cli.Command{
			RunCommand(),
			ConfigCommand(),
			HealthCommand(),
		},
	}
}
