package generator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
)

// fakeLLM scripts one response or error per call.
type fakeLLM struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (f *fakeLLM) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	idx := f.calls
	f.calls++

	if len(messages) > 0 && len(messages[0].Parts) > 0 {
		if text, ok := messages[0].Parts[0].(llms.TextContent); ok {
			f.prompts = append(f.prompts, text.Text)
		}
	}

	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	response := ""
	if idx < len(f.responses) {
		response = f.responses[idx]
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: response}},
	}, nil
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := f.GenerateContent(ctx, []llms.MessageContent{llms.TextParts(schema.ChatMessageTypeHuman, prompt)}, options...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

func testConfig() Config {
	return Config{RetryBackoff: time.Millisecond}
}

func newTestGenerator(t *testing.T, llm llms.Model) *Generator {
	t.Helper()
	g, err := NewWithModel(llm, testConfig(), zap.NewNop())
	require.NoError(t, err)
	return g
}

func TestNew_WithoutAPIKey(t *testing.T) {
	g, err := New(Config{}, zap.NewNop())
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "question", nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.BaseURL)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.Model)
	assert.Equal(t, 2, cfg.MaxRetries)
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("why is the sky blue?", []string{"first passage", "second passage"})

	assert.Contains(t, prompt, "[1] first passage")
	assert.Contains(t, prompt, "[2] second passage")
	assert.Contains(t, prompt, "Question: why is the sky blue?")
}

func TestBuildPrompt_NoContext(t *testing.T) {
	prompt := BuildPrompt("anything?", nil)
	assert.Contains(t, prompt, "(no context available)")
}

func TestGenerate_Success(t *testing.T) {
	llm := &fakeLLM{responses: []string{"  The sky is blue [1].  "}}
	g := newTestGenerator(t, llm)

	answer, err := g.Generate(context.Background(), "why?", []string{"the sky is blue"})
	require.NoError(t, err)
	assert.Equal(t, "The sky is blue [1].", answer)
	assert.Equal(t, 1, llm.calls)

	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "[1] the sky is blue")
}

func TestGenerate_EmptyQuestion(t *testing.T) {
	g := newTestGenerator(t, &fakeLLM{})
	_, err := g.Generate(context.Background(), "   ", nil)
	assert.Error(t, err)
}

func TestGenerate_AuthErrorNotRetried(t *testing.T) {
	llm := &fakeLLM{errs: []error{errors.New("API returned unexpected status code: 401 Invalid API Key")}}
	g := newTestGenerator(t, llm)

	_, err := g.Generate(context.Background(), "question", nil)
	assert.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, 1, llm.calls)
}

func TestGenerate_DeprecatedModelNotRetried(t *testing.T) {
	llm := &fakeLLM{errs: []error{errors.New("the model `llama3-8b` has been decommissioned")}}
	g := newTestGenerator(t, llm)

	_, err := g.Generate(context.Background(), "question", nil)
	assert.ErrorIs(t, err, ErrModelDeprecated)
	assert.Equal(t, 1, llm.calls)
}

func TestGenerate_UnsupportedModel(t *testing.T) {
	llm := &fakeLLM{errs: []error{errors.New("model xyz is no longer supported")}}
	g := newTestGenerator(t, llm)

	_, err := g.Generate(context.Background(), "question", nil)
	assert.ErrorIs(t, err, ErrModelDeprecated)
}

func TestGenerate_TransientErrorRetried(t *testing.T) {
	llm := &fakeLLM{
		errs:      []error{errors.New("connection reset by peer"), nil},
		responses: []string{"", "recovered"},
	}
	g := newTestGenerator(t, llm)

	answer, err := g.Generate(context.Background(), "question", nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered", answer)
	assert.Equal(t, 2, llm.calls)
}

func TestGenerate_RetryBudgetExhausted(t *testing.T) {
	upstream := errors.New("upstream timeout")
	llm := &fakeLLM{errs: []error{upstream, upstream, upstream, upstream}}
	g := newTestGenerator(t, llm)

	_, err := g.Generate(context.Background(), "question", nil)
	assert.ErrorIs(t, err, ErrGeneration)
	// Initial attempt plus MaxRetries retries.
	assert.Equal(t, 3, llm.calls)
}

func TestClassifyError(t *testing.T) {
	assert.ErrorIs(t, classifyError(errors.New("401 unauthorized")), ErrAuth)
	assert.ErrorIs(t, classifyError(errors.New("Invalid API Key provided")), ErrAuth)
	assert.ErrorIs(t, classifyError(errors.New("model has been decommissioned")), ErrModelDeprecated)
	assert.ErrorIs(t, classifyError(errors.New("this model is not supported")), ErrModelDeprecated)
	assert.ErrorIs(t, classifyError(errors.New("connection refused")), ErrGeneration)
}

func TestGenerate_RateLimiterConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.RequestsPerSecond = 1000
	llm := &fakeLLM{responses: []string{"a", "b"}}
	g, err := NewWithModel(llm, cfg, zap.NewNop())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := g.Generate(context.Background(), "question", nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, llm.calls)
}
