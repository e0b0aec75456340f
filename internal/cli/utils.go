package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	appconfig "github.com/lewisedginton/whatsapp_relay/internal/config"
	"github.com/lewisedginton/whatsapp_relay/pkg/logger"
)

// getLogger retrieves the logger from the CLI context metadata
func getLogger(ctx *cli.Context) logger.Logger {
	if ctx.App.Metadata != nil {
		if log, ok := ctx.App.Metadata["logger"].(logger.Logger); ok {
			return log
		}
	}

	return logger.NewLogger(logger.Config{
		Level:   logger.InfoLevel,
		Format:  "json",
		Service: "whatsapp-relay",
	})
}

// loadConfig reads the dotenv files, the optional YAML file and the
// environment, validating the result, then applies the logging flag overrides
func loadConfig(ctx *cli.Context) (*appconfig.AppConfig, error) {
	cfg, err := appconfig.Load(ctx.String("config-file"), ctx.StringSlice("env-file")...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if !ctx.IsSet("log-level") && !ctx.IsSet("log-format") {
		return cfg, nil
	}
	if level := ctx.String("log-level"); level != "" {
		cfg.LogLevel = level
	}
	if format := ctx.String("log-format"); format != "" {
		cfg.LogFormat = format
	}
	if err := cfg.CommonConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging flags: %w", err)
	}
	return cfg, nil
}
