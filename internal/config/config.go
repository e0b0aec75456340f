// Package config defines the relay's application configuration.
package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/hashicorp/go-multierror"

	pkgconfig "github.com/lewisedginton/whatsapp_relay/pkg/config"
	"github.com/lewisedginton/whatsapp_relay/pkg/logger"
)

const redacted = "[REDACTED]"

// AppConfig holds all application configuration
type AppConfig struct {
	pkgconfig.CommonConfig `yaml:",inline"`

	Version     string `env:"VERSION" yaml:"version" default:"dev"`
	Environment string `env:"ENVIRONMENT" yaml:"environment" default:"development"`

	LLM       LLMConfig       `yaml:"llm"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai"`

	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	Telegram TelegramConfig `yaml:"telegram"`
	Slack    SlackConfig    `yaml:"slack"`

	Relay   RelayConfig                `yaml:"relay"`
	HTTP    pkgconfig.HTTPServerConfig `yaml:"http"`
	Health  HealthConfig               `yaml:"health"`
	Metrics pkgconfig.MetricsConfig    `yaml:"metrics"`
}

// Load reads .env files, then the optional YAML file, then the environment,
// and validates the result. Missing .env files are ignored.
func Load(path string, envFiles ...string) (*AppConfig, error) {
	if err := pkgconfig.LoadDotEnv(envFiles...); err != nil {
		return nil, err
	}

	var cfg AppConfig
	if err := pkgconfig.GetConfig(&cfg, path, false); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate validates the configuration and returns every problem found
func (c AppConfig) Validate() error {
	var result error

	if err := c.CommonConfig.Validate(); err != nil {
		result = multierror.Append(result, err)
	}

	switch strings.ToLower(c.LLM.Provider) {
	case ProviderGemini:
		if c.Gemini.APIKey == "" && !c.Gemini.UseVertexAI() {
			result = multierror.Append(result, fmt.Errorf("GEMINI_API_KEY is not set in the environment"))
		}
		if c.Gemini.Model == "" {
			result = multierror.Append(result, fmt.Errorf("GEMINI_MODEL must not be empty"))
		}
		if c.Gemini.Temperature < 0 || c.Gemini.Temperature > 2 {
			result = multierror.Append(result, fmt.Errorf("gemini temperature must be between 0 and 2, got %v", c.Gemini.Temperature))
		}
		if c.Gemini.MaxOutputTokens < 0 {
			result = multierror.Append(result, fmt.Errorf("gemini max_output_tokens cannot be negative"))
		}
	case ProviderClaude:
		if c.Anthropic.APIKey == "" {
			result = multierror.Append(result, fmt.Errorf("ANTHROPIC_API_KEY is not set in the environment"))
		}
		if c.Anthropic.MaxTokens <= 0 {
			result = multierror.Append(result, fmt.Errorf("anthropic max_tokens must be greater than 0"))
		}
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			result = multierror.Append(result, fmt.Errorf("OPENAI_API_KEY is not set in the environment"))
		}
		if c.OpenAI.MaxTokens <= 0 {
			result = multierror.Append(result, fmt.Errorf("openai max_tokens must be greater than 0"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("llm provider must be one of [gemini, claude, openai], got %q", c.LLM.Provider))
	}

	if !c.WhatsApp.Enabled && !c.Telegram.Enabled() && !c.Slack.Enabled() {
		result = multierror.Append(result, fmt.Errorf("no connector enabled: enable WhatsApp or configure Telegram or Slack"))
	}

	if c.WhatsApp.Enabled {
		u, err := url.Parse(c.WhatsApp.BridgeURL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
			result = multierror.Append(result, fmt.Errorf("whatsapp bridge_url must be a ws:// or wss:// URL, got %q", c.WhatsApp.BridgeURL))
		}
		if c.WhatsApp.ReconnectMin <= 0 {
			result = multierror.Append(result, fmt.Errorf("whatsapp reconnect_min must be greater than 0"))
		}
		if c.WhatsApp.ReconnectMax < c.WhatsApp.ReconnectMin {
			result = multierror.Append(result, fmt.Errorf("whatsapp reconnect_max must be greater than or equal to reconnect_min"))
		}
		if c.WhatsApp.HandshakeTimeout <= 0 || c.WhatsApp.WriteTimeout <= 0 {
			result = multierror.Append(result, fmt.Errorf("whatsapp handshake_timeout and write_timeout must be greater than 0"))
		}
	}

	if c.Relay.GenerationTimeout < 0 {
		result = multierror.Append(result, fmt.Errorf("relay generation_timeout cannot be negative"))
	}
	if c.Relay.DrainTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("relay drain_timeout must be greater than 0"))
	}

	if c.Health.Enabled || c.Metrics.Enabled {
		if err := c.HTTP.Validate(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if c.Health.Enabled {
		for _, p := range []string{c.Health.LivenessPath, c.Health.ReadinessPath, c.Health.CombinedPath} {
			if !strings.HasPrefix(p, "/") {
				result = multierror.Append(result, fmt.Errorf("health paths must start with '/', got %q", p))
			}
		}
		if c.Health.Timeout <= 0 {
			result = multierror.Append(result, fmt.Errorf("health timeout must be greater than 0"))
		}
	}
	if c.Health.GRPCEnabled && (c.Health.GRPCPort < 1 || c.Health.GRPCPort > 65535) {
		result = multierror.Append(result, fmt.Errorf("health grpc port must be between 1-65535, got %d", c.Health.GRPCPort))
	}
	if err := c.Metrics.Validate(); err != nil {
		result = multierror.Append(result, err)
	}

	return result
}

// GetLogLevel returns the parsed logger level
func (c AppConfig) GetLogLevel() logger.Level {
	return logger.ParseLevel(c.LogLevel)
}

// LoggerConfig builds the logger settings from this configuration
func (c AppConfig) LoggerConfig() logger.Config {
	return logger.Config{
		Level:   c.GetLogLevel(),
		Format:  strings.ToLower(c.LogFormat),
		Service: c.ServiceName,
	}
}

// Redacted returns a copy with every secret masked, safe to print
func (c AppConfig) Redacted() AppConfig {
	mask := func(s *string) {
		if *s != "" {
			*s = redacted
		}
	}
	mask(&c.Gemini.APIKey)
	mask(&c.Anthropic.APIKey)
	mask(&c.OpenAI.APIKey)
	mask(&c.WhatsApp.BridgeToken)
	mask(&c.Telegram.BotToken)
	mask(&c.Slack.BotToken)
	mask(&c.Slack.AppToken)
	return c
}

// EnabledConnectors lists the platforms that will be started
func (c AppConfig) EnabledConnectors() []string {
	var names []string
	if c.WhatsApp.Enabled {
		names = append(names, "whatsapp")
	}
	if c.Telegram.Enabled() {
		names = append(names, "telegram")
	}
	if c.Slack.Enabled() {
		names = append(names, "slack")
	}
	return names
}

// LogConfig logs the current configuration (without sensitive data)
func (c AppConfig) LogConfig(log logger.Logger) {
	model := c.Gemini.Model
	switch strings.ToLower(c.LLM.Provider) {
	case ProviderClaude:
		model = c.Anthropic.Model
	case ProviderOpenAI:
		model = c.OpenAI.Model
	}

	log.Info("Application configuration loaded",
		logger.StringField("service_name", c.ServiceName),
		logger.StringField("version", c.Version),
		logger.StringField("environment", c.Environment),
		logger.StringField("llm_provider", c.LLM.Provider),
		logger.StringField("llm_model", model),
		logger.StringField("connectors", strings.Join(c.EnabledConnectors(), ",")),
		logger.StringField("whatsapp_bridge_url", c.WhatsApp.BridgeURL),
		logger.DurationField("generation_timeout", c.Relay.GenerationTimeout),
		logger.IntField("http_port", c.HTTP.Port),
		logger.BoolField("health_enabled", c.Health.Enabled),
		logger.BoolField("health_grpc_enabled", c.Health.GRPCEnabled),
		logger.BoolField("metrics_enabled", c.Metrics.Enabled),
		logger.StringField("log_level", c.LogLevel),
		logger.StringField("log_format", c.LogFormat),
	)
}
