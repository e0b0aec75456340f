package config

// GeminiConfig holds Google Gemini settings. Setting both Project and Region
// switches the client to the Vertex AI backend, where no API key is needed.
type GeminiConfig struct {
	APIKey  string `env:"GEMINI_API_KEY" yaml:"api_key"`
	Model   string `env:"GEMINI_MODEL" yaml:"model" default:"gemini-2.5-flash"`
	Project string `env:"GOOGLE_CLOUD_PROJECT" yaml:"project"`
	Region  string `env:"GOOGLE_CLOUD_REGION" yaml:"region"`

	SystemPrompt string `env:"GEMINI_SYSTEM_PROMPT" yaml:"system_prompt"`

	// Temperature and MaxOutputTokens are left to the model when zero
	Temperature     float64 `env:"GEMINI_TEMPERATURE" yaml:"temperature"`
	MaxOutputTokens int     `env:"GEMINI_MAX_OUTPUT_TOKENS" yaml:"max_output_tokens"`
}

// UseVertexAI reports whether the Vertex AI backend is configured
func (c GeminiConfig) UseVertexAI() bool {
	return c.Project != "" && c.Region != ""
}
