// Package server assembles the relay: generator, connectors, health and
// metrics endpoints, and their shutdown order.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc"

	appconfig "github.com/lewisedginton/whatsapp_relay/internal/config"
	"github.com/lewisedginton/whatsapp_relay/internal/connectors/slack"
	"github.com/lewisedginton/whatsapp_relay/internal/connectors/telegram"
	"github.com/lewisedginton/whatsapp_relay/internal/connectors/whatsapp"
	"github.com/lewisedginton/whatsapp_relay/internal/generation"
	"github.com/lewisedginton/whatsapp_relay/internal/monitoring"
	"github.com/lewisedginton/whatsapp_relay/internal/relay"
	"github.com/lewisedginton/whatsapp_relay/pkg/health"
	"github.com/lewisedginton/whatsapp_relay/pkg/httpmiddleware"
	"github.com/lewisedginton/whatsapp_relay/pkg/logger"
	"github.com/lewisedginton/whatsapp_relay/pkg/metrics"
	"github.com/lewisedginton/whatsapp_relay/pkg/utils"
)

const serverStopTimeout = 5 * time.Second

// Connector is a messaging platform feeding the relay. Start blocks until
// the connector stops.
type Connector interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Ready() error
}

type Server struct {
	cfg        *appconfig.AppConfig
	log        logger.Logger
	metrics    *metrics.Metrics
	relay      *relay.Relay
	connectors []Connector
	monitor    *monitoring.HealthMonitor
}

// New builds the configured generator and everything around it. No
// connection is opened until Run.
func New(ctx context.Context, cfg *appconfig.AppConfig, log logger.Logger) (*Server, error) {
	gen, err := generation.New(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}
	log.Info("Generator initialized",
		logger.GeneratorField(gen.Name()),
		logger.StringField("provider", cfg.LLM.Provider),
	)
	return NewWithGenerator(cfg, gen, log)
}

// NewWithGenerator is New with an already constructed generator
func NewWithGenerator(cfg *appconfig.AppConfig, gen relay.Generator, log logger.Logger) (*Server, error) {
	s := &Server{
		cfg:     cfg,
		log:     log,
		metrics: metrics.NewMetrics(cfg.Metrics.EnableHTTPMetrics, cfg.Metrics.EnableGRPCMetrics, log),
	}

	var err error
	s.relay, err = relay.New(relay.Config{
		Generator:         gen,
		Logger:            log,
		FallbackText:      cfg.Relay.FallbackText,
		GenerationTimeout: cfg.Relay.GenerationTimeout,
		Metrics:           s.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create relay: %w", err)
	}

	if cfg.WhatsApp.Enabled {
		c, err := whatsapp.NewConnector(cfg.WhatsApp, s.relay, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create WhatsApp connector: %w", err)
		}
		s.connectors = append(s.connectors, c)
	} else {
		log.Info("WhatsApp connector disabled (WHATSAPP_ENABLED=false)")
	}

	if cfg.Telegram.Enabled() {
		c, err := telegram.NewConnector(telegram.Config{
			BotToken: cfg.Telegram.BotToken,
			Debug:    cfg.Telegram.Debug,
		}, s.relay, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create Telegram connector: %w", err)
		}
		s.connectors = append(s.connectors, c)
	} else {
		log.Info("Telegram connector disabled (missing TELEGRAM_BOT_TOKEN)")
	}

	if cfg.Slack.Enabled() {
		c, err := slack.NewConnector(slack.Config{
			BotToken: cfg.Slack.BotToken,
			AppToken: cfg.Slack.AppToken,
			Debug:    cfg.Slack.Debug,
		}, s.relay, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create Slack connector: %w", err)
		}
		s.connectors = append(s.connectors, c)
	} else {
		log.Info("Slack connector disabled (missing SLACK_BOT_TOKEN or SLACK_APP_TOKEN)")
	}

	if len(s.connectors) == 0 {
		return nil, errors.New("no connectors configured: enable WhatsApp or set the Telegram or Slack tokens")
	}

	monitored := make([]monitoring.Connector, 0, len(s.connectors))
	for _, c := range s.connectors {
		monitored = append(monitored, c)
	}
	bridgeHealthURL := ""
	if cfg.WhatsApp.Enabled {
		bridgeHealthURL = cfg.WhatsApp.HealthURL
	}
	s.monitor = monitoring.NewHealthMonitor(monitoring.Config{
		Logger:           log,
		Version:          cfg.Version,
		Connectors:       monitored,
		BridgeHealthURL:  bridgeHealthURL,
		Timeout:          cfg.Health.Timeout,
		FailureThreshold: cfg.Health.FailureThreshold,
	})

	return s, nil
}

// Relay returns the relay shared by every connector
func (s *Server) Relay() *relay.Relay {
	return s.relay
}

// Router builds the operational HTTP handler: health probes and /metrics
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	mwConfig := httpmiddleware.DefaultConfig()
	mwConfig.Logger = s.log
	mwConfig.EnableLogging = true
	mwConfig.QuietPaths = append(mwConfig.QuietPaths,
		s.cfg.Health.LivenessPath, s.cfg.Health.ReadinessPath, s.cfg.Health.CombinedPath, s.cfg.Metrics.Path)
	if s.cfg.Metrics.Enabled && s.cfg.Metrics.EnableHTTPMetrics {
		mwConfig.Instrument = s.metrics.HTTPMiddleware()
	}
	httpmiddleware.ApplyToRouter(r, mwConfig)

	if s.cfg.Health.Enabled {
		s.monitor.Mount(r, monitoring.Paths{
			Liveness:  s.cfg.Health.LivenessPath,
			Readiness: s.cfg.Health.ReadinessPath,
			Combined:  s.cfg.Health.CombinedPath,
		})
	}
	if s.cfg.Metrics.Enabled {
		r.Method(http.MethodGet, s.cfg.Metrics.Path, s.metrics.Handler())
	}
	return r
}

// Run starts the ops servers and every connector, then blocks until ctx is
// cancelled or a component fails. On shutdown the relay stops taking new
// messages and in-flight ones get the drain timeout to finish, still able to
// reply through their connector. Connectors stop next and the ops servers
// last so probes keep answering meanwhile.
func (s *Server) Run(ctx context.Context) error {
	var (
		errChans []<-chan error
		stops    []utils.StopFunc
		updater  *health.GRPCUpdater
	)
	defer func() {
		if updater != nil {
			updater.Stop()
		}
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), serverStopTimeout)
		defer cancel()
		for i := len(stops) - 1; i >= 0; i-- {
			stops[i](stopCtx)
		}
	}()

	if s.cfg.Health.Enabled || s.cfg.Metrics.Enabled {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", s.cfg.HTTP.Port),
			Handler:           s.Router(),
			ReadTimeout:       s.cfg.HTTP.ReadTimeout(),
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      s.cfg.HTTP.WriteTimeout(),
			IdleTimeout:       s.cfg.HTTP.IdleTimeout(),
			MaxHeaderBytes:    s.cfg.HTTP.MaxHeaderBytes,
		}
		errs, stop, err := utils.ListenHTTP(srv, s.log)
		if err != nil {
			return fmt.Errorf("failed to start ops HTTP server: %w", err)
		}
		errChans = append(errChans, errs)
		stops = append(stops, stop)
	}

	if s.cfg.Health.GRPCEnabled {
		interceptors := []grpc.UnaryServerInterceptor{logger.UnaryServerInterceptor(s.log)}
		if s.cfg.Metrics.EnableGRPCMetrics {
			interceptors = append(interceptors, s.metrics.GrpcRequestsInterceptor)
		}
		gs := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
		updater = s.monitor.Checker().RegisterWithGRPC(gs, s.cfg.Health.GRPCUpdateInterval)

		errs, stop, err := utils.ListenGRPC(gs, fmt.Sprintf(":%d", s.cfg.Health.GRPCPort), s.log)
		if err != nil {
			return fmt.Errorf("failed to start gRPC health server: %w", err)
		}
		errChans = append(errChans, errs)
		stops = append(stops, stop)
	}

	// Connectors outlive ctx until in-flight messages are drained
	connCtx, cancelConnectors := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelConnectors()

	connErrs := make([]<-chan error, 0, len(s.connectors))
	for _, c := range s.connectors {
		connErrs = append(connErrs, s.startConnector(connCtx, c))
	}
	s.log.Info("All enabled connectors started", logger.IntField("count", len(s.connectors)))

	allConnectorsDone := utils.MergeErrorChans(connErrs...)
	var serverErrs <-chan error
	if len(errChans) > 0 {
		serverErrs = utils.MergeErrorChans(errChans...)
	}

	var runErr error
	select {
	case <-ctx.Done():
		s.log.Info("Shutdown requested")
	case err, ok := <-allConnectorsDone:
		if ok && err != nil {
			runErr = err
		} else {
			s.log.Warn("All connectors stopped")
		}
	case err, ok := <-serverErrs:
		if ok && err != nil {
			runErr = fmt.Errorf("ops server failed: %w", err)
		}
	}
	if runErr != nil {
		s.log.Error("Shutting down after failure", logger.ErrorField(runErr))
	}

	s.shutdown(ctx, cancelConnectors, allConnectorsDone)
	return runErr
}

// startConnector runs c in the background. The channel carries its error, if
// any, and is closed when it returns.
func (s *Server) startConnector(ctx context.Context, c Connector) <-chan error {
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		s.log.Info("Starting connector", logger.PlatformField(c.Name()))
		if err := c.Start(ctx); err != nil {
			errs <- fmt.Errorf("%s connector: %w", c.Name(), err)
		}
	}()
	return errs
}

func (s *Server) shutdown(ctx context.Context, cancelConnectors context.CancelFunc, connectorsDone <-chan error) {
	s.monitor.MarkShuttingDown()

	drainCtx, cancelDrain := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Relay.DrainTimeout)
	defer cancelDrain()

	if err := s.relay.Wait(drainCtx); err != nil {
		s.log.Warn("In-flight messages abandoned at shutdown", logger.ErrorField(err))
	} else {
		s.log.Info("All in-flight messages finished")
	}

	cancelConnectors()
	for _, c := range s.connectors {
		if err := c.Stop(); err != nil {
			s.log.Warn("Connector stop failed", logger.PlatformField(c.Name()), logger.ErrorField(err))
		}
	}

	stopCtx, cancelStop := context.WithTimeout(context.WithoutCancel(ctx), serverStopTimeout)
	defer cancelStop()
	for {
		select {
		case _, ok := <-connectorsDone:
			if !ok {
				s.log.Info("All connectors stopped")
				return
			}
		case <-stopCtx.Done():
			s.log.Warn("Connectors did not stop in time")
			return
		}
	}
}
