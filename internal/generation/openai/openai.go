// Package openai answers prompts through the OpenAI chat completions API or
// any server that speaks it.
package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/lewisedginton/whatsapp_relay/pkg/logger"
)

const Name = "openai"

type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	MaxTokens  int
	MaxRetries int
	Timeout    time.Duration

	Logger logger.Logger
}

type Generator struct {
	client    *openai.Client
	model     string
	maxTokens int64
	log       logger.Logger
}

func New(cfg Config, opts ...option.RequestOption) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai API key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("openai model name is required")
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
	client := openai.NewClient(append(reqOpts, opts...)...)

	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}

	return &Generator{
		client:    &client,
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
		log:       log.WithFields(logger.GeneratorField(Name), logger.StringField("model", cfg.Model)),
	}, nil
}

func (g *Generator) Name() string {
	return Name
}

// Generate returns the first choice's message content.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if g.maxTokens > 0 {
		params.MaxTokens = openai.Int(g.maxTokens)
	}

	completion, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}

	choice := completion.Choices[0]
	logger.FromContext(ctx, g.log).Debug("Received response from openai",
		logger.StringField("finish_reason", choice.FinishReason),
		logger.Int64Field("total_tokens", completion.Usage.TotalTokens),
	)
	return choice.Message.Content, nil
}
