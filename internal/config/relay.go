package config

import "time"

// RelayConfig tunes the message pipeline shared by every connector
type RelayConfig struct {
	// FallbackText replaces the built-in apology sent when generation fails
	FallbackText string `env:"RELAY_FALLBACK_TEXT" yaml:"fallback_text"`

	// GenerationTimeout bounds a single model call; 0 disables the bound
	GenerationTimeout time.Duration `env:"RELAY_GENERATION_TIMEOUT" yaml:"generation_timeout" default:"60s"`

	// DrainTimeout is how long shutdown waits for in-flight messages
	DrainTimeout time.Duration `env:"RELAY_DRAIN_TIMEOUT" yaml:"drain_timeout" default:"30s"`
}
