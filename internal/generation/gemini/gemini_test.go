package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeModels struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig

	resp *genai.GenerateContentResponse
	err  error
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	f.config = config
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(text, genai.RoleModel)}},
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(context.Background(), Config{APIKey: "k"})
	assert.Error(t, err, "model is required")

	_, err = New(context.Background(), Config{Model: "gemini-2.5-flash"})
	assert.Error(t, err, "api key is required without vertex")
}

func TestGenerate(t *testing.T) {
	fake := &fakeModels{resp: textResponse("Hi there!")}
	g := newWithModels(fake, Config{Model: "gemini-2.5-flash"})

	text, err := g.Generate(context.Background(), "Hello")
	require.NoError(t, err)

	assert.Equal(t, "Hi there!", text)
	assert.Equal(t, "gemini", g.Name())
	assert.Equal(t, "gemini-2.5-flash", fake.model)
	require.Len(t, fake.contents, 1)
	require.Len(t, fake.contents[0].Parts, 1)
	assert.Equal(t, "Hello", fake.contents[0].Parts[0].Text)
	assert.Equal(t, "user", fake.contents[0].Role)
}

func TestGenerate_APIError(t *testing.T) {
	fake := &fakeModels{err: errors.New("429 resource exhausted")}
	g := newWithModels(fake, Config{Model: "gemini-2.5-flash"})

	_, err := g.Generate(context.Background(), "Hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429 resource exhausted")
}

func TestGenerate_BlockedPrompt(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReason("SAFETY")},
	}
	g := newWithModels(&fakeModels{resp: resp}, Config{Model: "gemini-2.5-flash"})

	_, err := g.Generate(context.Background(), "Hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")
}

func TestGenerate_NoCandidates(t *testing.T) {
	g := newWithModels(&fakeModels{resp: &genai.GenerateContentResponse{}}, Config{Model: "gemini-2.5-flash"})

	text, err := g.Generate(context.Background(), "Hello")
	require.NoError(t, err)
	assert.Empty(t, text, "the relay treats empty text as a failure")
}

func TestBuildConfig(t *testing.T) {
	gc := buildConfig(Config{SystemPrompt: "Answer briefly.", Temperature: 0.4, MaxOutputTokens: 256})

	require.NotNil(t, gc.SystemInstruction)
	assert.Equal(t, "Answer briefly.", gc.SystemInstruction.Parts[0].Text)
	require.NotNil(t, gc.Temperature)
	assert.InDelta(t, 0.4, *gc.Temperature, 0.0001)
	assert.Equal(t, int32(256), gc.MaxOutputTokens)

	empty := buildConfig(Config{})
	assert.Nil(t, empty.SystemInstruction)
	assert.Nil(t, empty.Temperature)
	assert.Zero(t, empty.MaxOutputTokens)
}
