package config

import "time"

// HealthConfig holds health check configuration. The HTTP endpoints share the
// operational server configured by HTTP_PORT.
type HealthConfig struct {
	Enabled          bool          `env:"HEALTH_ENABLED" yaml:"enabled" default:"true"`
	LivenessPath     string        `env:"HEALTH_LIVENESS_PATH" yaml:"liveness_path" default:"/health/live"`
	ReadinessPath    string        `env:"HEALTH_READINESS_PATH" yaml:"readiness_path" default:"/health/ready"`
	CombinedPath     string        `env:"HEALTH_COMBINED_PATH" yaml:"combined_path" default:"/health"`
	Timeout          time.Duration `env:"HEALTH_TIMEOUT" yaml:"timeout" default:"10s"`
	FailureThreshold int           `env:"HEALTH_FAILURE_THRESHOLD" yaml:"failure_threshold" default:"3"`

	GRPCEnabled        bool          `env:"HEALTH_GRPC_ENABLED" yaml:"grpc_enabled" default:"false"`
	GRPCPort           int           `env:"HEALTH_GRPC_PORT" yaml:"grpc_port" default:"9090"`
	GRPCUpdateInterval time.Duration `env:"HEALTH_GRPC_UPDATE_INTERVAL" yaml:"grpc_update_interval" default:"5s"`
}
