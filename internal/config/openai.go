package config

import "time"

// OpenAIConfig holds OpenAI settings, used when LLM_PROVIDER=openai. APIBaseURL
// also points the client at OpenAI compatible servers.
type OpenAIConfig struct {
	APIKey     string        `env:"OPENAI_API_KEY" yaml:"api_key"`
	Model      string        `env:"OPENAI_MODEL" yaml:"model" default:"gpt-4o-mini"`
	APIBaseURL string        `env:"OPENAI_API_URL" yaml:"api_base_url"`
	MaxTokens  int           `env:"OPENAI_MAX_TOKENS" yaml:"max_tokens" default:"1024"`
	MaxRetries int           `env:"OPENAI_MAX_RETRIES" yaml:"max_retries" default:"2"`
	Timeout    time.Duration `env:"OPENAI_TIMEOUT" yaml:"timeout" default:"60s"`
}
