package config

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// MetricsConfig holds metrics collection and exposure settings
type MetricsConfig struct {
	// Enabled mounts the Prometheus handler on the operational HTTP server
	Enabled bool `env:"METRICS_ENABLED" yaml:"enabled" default:"true"`

	// Path is where the Prometheus handler is mounted
	Path string `env:"METRICS_PATH" yaml:"path" default:"/metrics"`

	// EnableHTTPMetrics counts responses served by the operational HTTP server
	EnableHTTPMetrics bool `env:"METRICS_ENABLE_HTTP" yaml:"enable_http_metrics" default:"true"`

	// EnableGRPCMetrics counts requests served by the gRPC health server
	EnableGRPCMetrics bool `env:"METRICS_ENABLE_GRPC" yaml:"enable_grpc_metrics" default:"false"`
}

// Validate checks the metrics path when metrics are exposed
func (m MetricsConfig) Validate() error {
	var result error
	if m.Enabled && !strings.HasPrefix(m.Path, "/") {
		result = multierror.Append(result, fmt.Errorf("metrics path must start with '/', got %q", m.Path))
	}
	return result
}
