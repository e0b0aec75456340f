package utils //nolint:revive // var-naming: utils is an acceptable package name for shared utilities

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"google.golang.org/grpc"

	"github.com/lewisedginton/whatsapp_relay/pkg/logger"
)

// StopFunc shuts a server down, giving in-flight work until ctx ends.
type StopFunc func(ctx context.Context)

// ListenGRPC binds addr and serves s in the background. The returned channel
// receives the serve error (nil after a normal stop) and is then closed.
func ListenGRPC(s *grpc.Server, addr string, log logger.Logger) (<-chan error, StopFunc, error) {
	lis, err := net.Listen("tcp", addr) //nolint:noctx // gRPC server manages listener lifecycle
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		log.Info("Starting gRPC server", logger.StringField("address", lis.Addr().String()))
		if err := s.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errs <- err
		}
	}()

	stop := func(ctx context.Context) {
		done := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			log.Warn("gRPC graceful stop timed out, forcing")
			s.Stop()
		}
	}
	return errs, stop, nil
}

// ListenHTTP binds srv.Addr and serves srv in the background, with the same
// contract as ListenGRPC.
func ListenHTTP(srv *http.Server, log logger.Logger) (<-chan error, StopFunc, error) {
	lis, err := net.Listen("tcp", srv.Addr) //nolint:noctx // listener handed to http.Server
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
	}

	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		log.Info("Starting HTTP server", logger.StringField("address", lis.Addr().String()))
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	stop := func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn("HTTP graceful shutdown failed, closing", logger.ErrorField(err))
			_ = srv.Close()
		}
	}
	return errs, stop, nil
}
