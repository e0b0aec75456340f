package cli

import (
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/whatsapp_relay/pkg/health/checkers"
	"github.com/lewisedginton/whatsapp_relay/pkg/logger"
)

// HealthCommand returns a command that probes a running relay, for use as a
// container health check
func HealthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Probe the liveness endpoint of a running relay",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "url",
				Usage: "Probe URL (default http://localhost:<HTTP_PORT><liveness path>)",
			},
			&cli.BoolFlag{
				Name:  "ready",
				Usage: "Probe the readiness endpoint instead",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 3 * time.Second,
				Usage: "Probe timeout",
			},
		},
		Action: healthAction,
	}
}

func healthAction(ctx *cli.Context) error {
	log := getLogger(ctx)

	url := ctx.String("url")
	if url == "" {
		cfg, err := loadConfig(ctx)
		if err != nil {
			log.Error("Failed to load configuration", logger.ErrorField(err))
			return err
		}
		path := cfg.Health.LivenessPath
		if ctx.Bool("ready") {
			path = cfg.Health.ReadinessPath
		}
		url = fmt.Sprintf("http://localhost:%d%s", cfg.HTTP.Port, path)
	}

	checker := checkers.NewHTTPChecker(url, "relay",
		checkers.WithClient(&http.Client{Timeout: ctx.Duration("timeout")}),
		checkers.Strict(),
	)
	if err := checker.Check(ctx.Context); err != nil {
		log.Error("Health check failed", logger.StringField("url", url), logger.ErrorField(err))
		return fmt.Errorf("health check failed: %w", err)
	}

	log.Info("Health check passed", logger.StringField("url", url))
	fmt.Fprintln(ctx.App.Writer, "Health check passed")
	return nil
}
