// Package generation builds the configured relay.Generator.
package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/lewisedginton/whatsapp_relay/internal/config"
	"github.com/lewisedginton/whatsapp_relay/internal/generation/anthropic"
	"github.com/lewisedginton/whatsapp_relay/internal/generation/gemini"
	"github.com/lewisedginton/whatsapp_relay/internal/generation/openai"
	"github.com/lewisedginton/whatsapp_relay/internal/relay"
	"github.com/lewisedginton/whatsapp_relay/pkg/logger"
)

// New returns the generator selected by cfg.LLM.Provider.
func New(ctx context.Context, cfg *config.AppConfig, log logger.Logger) (relay.Generator, error) {
	var (
		g   relay.Generator
		err error
	)
	switch strings.ToLower(cfg.LLM.Provider) {
	case config.ProviderGemini:
		g, err = gemini.New(ctx, gemini.Config{
			APIKey:          cfg.Gemini.APIKey,
			Model:           cfg.Gemini.Model,
			Project:         cfg.Gemini.Project,
			Region:          cfg.Gemini.Region,
			SystemPrompt:    cfg.Gemini.SystemPrompt,
			Temperature:     cfg.Gemini.Temperature,
			MaxOutputTokens: cfg.Gemini.MaxOutputTokens,
			Logger:          log,
		})
	case config.ProviderClaude:
		g, err = anthropic.New(anthropic.Config{
			APIKey:     cfg.Anthropic.APIKey,
			Model:      cfg.Anthropic.Model,
			BaseURL:    cfg.Anthropic.APIBaseURL,
			MaxTokens:  cfg.Anthropic.MaxTokens,
			MaxRetries: cfg.Anthropic.MaxRetries,
			Timeout:    cfg.Anthropic.Timeout,
			Logger:     log,
		})
	case config.ProviderOpenAI:
		g, err = openai.New(openai.Config{
			APIKey:     cfg.OpenAI.APIKey,
			Model:      cfg.OpenAI.Model,
			BaseURL:    cfg.OpenAI.APIBaseURL,
			MaxTokens:  cfg.OpenAI.MaxTokens,
			MaxRetries: cfg.OpenAI.MaxRetries,
			Timeout:    cfg.OpenAI.Timeout,
			Logger:     log,
		})
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.LLM.Provider)
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}
