// Package gemini answers prompts with Google Gemini through google.golang.org/genai.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/lewisedginton/whatsapp_relay/pkg/logger"
)

const Name = "gemini"

// contentGenerator is the subset of *genai.Models the generator needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config configures a Generator. Project and Region together select Vertex AI.
type Config struct {
	APIKey  string
	Model   string
	Project string
	Region  string

	SystemPrompt    string
	Temperature     float64
	MaxOutputTokens int

	Logger logger.Logger
}

// Generator implements relay.Generator on top of the Gemini API.
type Generator struct {
	models contentGenerator
	model  string
	config *genai.GenerateContentConfig
	log    logger.Logger
}

// New creates a client for the Gemini API, or for Vertex AI when a project
// and region are configured.
func New(ctx context.Context, cfg Config) (*Generator, error) {
	if cfg.Model == "" {
		return nil, errors.New("gemini: model name is required")
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Project != "" && cfg.Region != "" {
		clientConfig.APIKey = ""
		clientConfig.Backend = genai.BackendVertexAI
		clientConfig.Project = cfg.Project
		clientConfig.Location = cfg.Region
	} else if cfg.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	g := newWithModels(client.Models, cfg)
	g.log.Info("Gemini generator ready",
		logger.StringField("model", cfg.Model),
		logger.BoolField("vertex_ai", clientConfig.Backend == genai.BackendVertexAI),
	)
	return g, nil
}

func newWithModels(models contentGenerator, cfg Config) *Generator {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Generator{
		models: models,
		model:  cfg.Model,
		config: buildConfig(cfg),
		log:    log.WithFields(logger.GeneratorField(Name), logger.StringField("model", cfg.Model)),
	}
}

func buildConfig(cfg Config) *genai.GenerateContentConfig {
	gc := &genai.GenerateContentConfig{}
	if cfg.SystemPrompt != "" {
		gc.SystemInstruction = genai.NewContentFromText(cfg.SystemPrompt, genai.RoleUser)
	}
	if cfg.Temperature > 0 {
		gc.Temperature = genai.Ptr(float32(cfg.Temperature))
	}
	if cfg.MaxOutputTokens > 0 {
		gc.MaxOutputTokens = int32(cfg.MaxOutputTokens)
	}
	return gc
}

func (g *Generator) Name() string {
	return Name
}

// Generate sends prompt as a single user turn and returns the response text.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), g.config)
	if err != nil {
		return "", fmt.Errorf("gemini api error: %w", err)
	}
	if resp == nil {
		return "", errors.New("gemini returned no response")
	}
	if pf := resp.PromptFeedback; pf != nil && pf.BlockReason != "" {
		return "", fmt.Errorf("gemini blocked the prompt: %s", pf.BlockReason)
	}

	text := resp.Text()
	logger.FromContext(ctx, g.log).Debug("Received response from gemini",
		logger.IntField("candidates", len(resp.Candidates)),
		logger.IntField("response_chars", len(text)),
	)
	return text, nil
}
