package config

const (
	ProviderGemini = "gemini"
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
)

// LLMConfig selects which language model answers relayed messages
type LLMConfig struct {
	// Provider is one of "gemini", "claude" or "openai"
	Provider string `env:"LLM_PROVIDER" yaml:"provider" default:"gemini"`
}
