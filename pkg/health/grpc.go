package health

import (
	"context"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/lewisedginton/whatsapp_relay/pkg/logger"
)

// DefaultGRPCUpdateInterval is how often readiness is pushed to the gRPC health service
const DefaultGRPCUpdateInterval = 5 * time.Second

// GRPCUpdater mirrors readiness into a grpc.health.v1 server. The empty
// service name carries the overall status; every readiness check is also
// published under its own name (for example "whatsapp").
type GRPCUpdater struct {
	checker  *Checker
	server   *health.Server
	interval time.Duration

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// RegisterWithGRPC registers the health service on server and starts the
// background updater. Call Stop on shutdown.
func (c *Checker) RegisterWithGRPC(server *grpc.Server, interval time.Duration) *GRPCUpdater {
	if interval <= 0 {
		interval = DefaultGRPCUpdateInterval
	}

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, hs)

	u := &GRPCUpdater{
		checker:  c,
		server:   hs,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	u.setAll(grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	go u.run()

	c.logger.Info("gRPC health service registered", logger.DurationField("update_interval", interval))
	return u
}

func (u *GRPCUpdater) run() {
	defer close(u.done)

	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	u.update()
	for {
		select {
		case <-ticker.C:
			u.update()
		case <-u.stop:
			u.server.Shutdown()
			return
		}
	}
}

func (u *GRPCUpdater) update() {
	ctx, cancel := context.WithTimeout(context.Background(), u.interval)
	defer cancel()

	status, _ := u.checker.CheckReadiness(ctx)

	overall := grpc_health_v1.HealthCheckResponse_SERVING
	if !status.Healthy {
		overall = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	u.server.SetServingStatus("", overall)

	for _, c := range status.Checks {
		s := grpc_health_v1.HealthCheckResponse_SERVING
		if !c.Healthy {
			s = grpc_health_v1.HealthCheckResponse_NOT_SERVING
		}
		u.server.SetServingStatus(c.Name, s)
	}
}

func (u *GRPCUpdater) setAll(s grpc_health_v1.HealthCheckResponse_ServingStatus) {
	u.server.SetServingStatus("", s)
	for _, name := range u.checker.ReadinessNames() {
		u.server.SetServingStatus(name, s)
	}
}

// Stop marks every service NOT_SERVING and waits for the updater to exit. Safe to call twice.
func (u *GRPCUpdater) Stop() {
	u.stopOnce.Do(func() {
		close(u.stop)
		<-u.done
		u.checker.logger.Info("gRPC health updater stopped")
	})
}
