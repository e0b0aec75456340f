package generation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/whatsapp_relay/internal/config"
	"github.com/lewisedginton/whatsapp_relay/pkg/logger"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.AppConfig
		wantName string
		wantErr  bool
	}{
		{
			name:     "gemini",
			cfg:      config.AppConfig{LLM: config.LLMConfig{Provider: "gemini"}, Gemini: config.GeminiConfig{APIKey: "k", Model: "gemini-2.5-flash"}},
			wantName: "gemini",
		},
		{
			name:     "claude is case insensitive",
			cfg:      config.AppConfig{LLM: config.LLMConfig{Provider: "Claude"}, Anthropic: config.AnthropicConfig{APIKey: "k", Model: "claude-sonnet-4-5-20250929", MaxTokens: 512}},
			wantName: "claude",
		},
		{
			name:     "openai",
			cfg:      config.AppConfig{LLM: config.LLMConfig{Provider: "openai"}, OpenAI: config.OpenAIConfig{APIKey: "k", Model: "gpt-4o-mini"}},
			wantName: "openai",
		},
		{
			name:    "missing gemini key",
			cfg:     config.AppConfig{LLM: config.LLMConfig{Provider: "gemini"}, Gemini: config.GeminiConfig{Model: "gemini-2.5-flash"}},
			wantErr: true,
		},
		{
			name:    "unknown provider",
			cfg:     config.AppConfig{LLM: config.LLMConfig{Provider: "llama"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New(context.Background(), &tt.cfg, logger.NewNop())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, g.Name())
		})
	}
}
