// Package generator produces grounded answers from retrieved context via an
// OpenAI-compatible chat completion API.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var generatorTracer = otel.Tracer("ragd.generator")

// Sentinel errors for answer generation.
var (
	// ErrMissingAPIKey is returned when no API key is configured. Checked
	// per request so the service can start without one and only queries fail.
	ErrMissingAPIKey = errors.New("generator: API key not configured")

	// ErrAuth indicates the upstream rejected our credentials.
	ErrAuth = errors.New("generator: authentication failed")

	// ErrModelDeprecated indicates the configured model has been retired
	// upstream and the configuration must name a newer one.
	ErrModelDeprecated = errors.New("generator: model deprecated or unsupported")

	// ErrGeneration indicates an upstream completion failure.
	ErrGeneration = errors.New("generator: completion failed")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("generator: invalid configuration")
)

// Config holds configuration for the answer generator.
type Config struct {
	// BaseURL is the chat completion endpoint base.
	// Default: "https://api.groq.com/openai/v1"
	BaseURL string

	// Model is the chat model name. Default: "llama-3.3-70b-versatile"
	Model string

	// APIKey authenticates requests. May be empty; Generate then fails
	// with ErrMissingAPIKey.
	APIKey string

	// Temperature controls sampling randomness. Default: 0.2
	Temperature float64

	// MaxTokens bounds the completion length. Default: 1024
	MaxTokens int

	// MaxRetries is the retry budget for transient upstream failures.
	// Auth and configuration errors are never retried. Default: 2
	MaxRetries int

	// RetryBackoff is the initial backoff, doubled per retry. Default: 500ms
	RetryBackoff time.Duration

	// RequestsPerSecond throttles upstream calls. Zero disables throttling.
	RequestsPerSecond float64
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.groq.com/openai/v1"
	}
	if c.Model == "" {
		c.Model = "llama-3.3-70b-versatile"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.2
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 1024
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: temperature must be in [0, 2]", ErrInvalidConfig)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("%w: max tokens cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// Generator turns a question plus numbered context blocks into an answer.
type Generator struct {
	llm     llms.Model
	config  Config
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New creates a Generator. A missing API key is not a construction error;
// the client stays unset and every Generate call reports ErrMissingAPIKey.
func New(config Config, logger *zap.Logger) (*Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	g := &Generator{
		config: config,
		logger: logger,
	}
	if config.RequestsPerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}

	if config.APIKey == "" {
		logger.Warn("no generator API key configured, queries will fail until one is set")
		return g, nil
	}

	llm, err := openai.New(
		openai.WithBaseURL(config.BaseURL),
		openai.WithModel(config.Model),
		openai.WithToken(config.APIKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating completion client: %w", err)
	}
	g.llm = llm

	return g, nil
}

// NewWithModel creates a Generator around an existing model client.
func NewWithModel(llm llms.Model, config Config, logger *zap.Logger) (*Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	g := &Generator{
		llm:    llm,
		config: config,
		logger: logger,
	}
	if config.RequestsPerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}
	return g, nil
}

const systemPreamble = "You are a careful assistant answering strictly from the numbered context passages below. " +
	"Cite passages inline with their bracketed numbers, like [1] or [3]. " +
	"If the context does not contain the answer, say so instead of guessing."

// BuildPrompt assembles the completion prompt from the question and the
// numbered context blocks. Block i is labeled [i+1], matching the citation
// markers returned to the caller.
func BuildPrompt(question string, contexts []string) string {
	var b strings.Builder
	b.WriteString(systemPreamble)
	b.WriteString("\n\nContext:\n")
	for i, c := range contexts {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, c)
	}
	if len(contexts) == 0 {
		b.WriteString("(no context available)\n")
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\nAnswer:")
	return b.String()
}

// Generate produces an answer grounded in the given context blocks.
func (g *Generator) Generate(ctx context.Context, question string, contexts []string) (string, error) {
	ctx, span := generatorTracer.Start(ctx, "Generator.Generate")
	defer span.End()

	span.SetAttributes(
		attribute.String("model", g.config.Model),
		attribute.Int("context_count", len(contexts)),
	)

	if g.llm == nil {
		span.SetStatus(codes.Error, ErrMissingAPIKey.Error())
		return "", ErrMissingAPIKey
	}
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("question cannot be empty")
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	prompt := BuildPrompt(question, contexts)

	var answer string
	backoff := g.config.RetryBackoff
	for attempt := 0; ; attempt++ {
		completion, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt,
			llms.WithTemperature(g.config.Temperature),
			llms.WithMaxTokens(g.config.MaxTokens),
		)
		if err == nil {
			answer = completion
			break
		}

		classified := classifyError(err)
		if !isRetryable(classified) || attempt == g.config.MaxRetries {
			span.RecordError(classified)
			span.SetStatus(codes.Error, classified.Error())
			return "", classified
		}

		g.logger.Warn("completion failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("generation canceled: %w", ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}

	span.SetStatus(codes.Ok, "success")
	return strings.TrimSpace(answer), nil
}

// Model returns the configured model name.
func (g *Generator) Model() string {
	return g.config.Model
}

// classifyError maps upstream failure messages onto the error taxonomy.
// The upstream reports failures as free text, so classification is by
// message substring.
func classifyError(err error) error {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "decommissioned"),
		strings.Contains(msg, "model") && strings.Contains(msg, "supported"):
		return fmt.Errorf("%w: %v", ErrModelDeprecated, err)
	case strings.Contains(msg, "invalid api key"),
		strings.Contains(msg, "401"),
		strings.Contains(msg, "unauthorized"):
		return fmt.Errorf("%w: %v", ErrAuth, err)
	default:
		return fmt.Errorf("%w: %v", ErrGeneration, err)
	}
}

// isRetryable reports whether a classified error is worth retrying.
// Credential and model configuration failures will not fix themselves.
func isRetryable(err error) bool {
	return !errors.Is(err, ErrAuth) && !errors.Is(err, ErrModelDeprecated)
}
