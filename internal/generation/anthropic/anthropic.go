// Package anthropic answers prompts with Claude through the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/lewisedginton/whatsapp_relay/pkg/logger"
)

const Name = "claude"

type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	MaxTokens  int
	MaxRetries int
	Timeout    time.Duration

	Logger logger.Logger
}

// Generator implements relay.Generator with a single-turn Messages request.
type Generator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	log       logger.Logger
}

func New(cfg Config, opts ...option.RequestOption) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic API key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("anthropic model name is required")
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(cfg.Timeout))
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}

	return &Generator{
		client:    anthropic.NewClient(append(reqOpts, opts...)...),
		model:     cfg.Model,
		maxTokens: int64(maxTokens),
		log:       log.WithFields(logger.GeneratorField(Name), logger.StringField("model", cfg.Model)),
	}, nil
}

func (g *Generator) Name() string {
	return Name
}

// Generate returns the concatenated text blocks of Claude's answer.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude api error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	logger.FromContext(ctx, g.log).Debug("Received response from anthropic",
		logger.IntField("content_blocks", len(resp.Content)),
		logger.StringField("stop_reason", string(resp.StopReason)),
	)
	return sb.String(), nil
}
