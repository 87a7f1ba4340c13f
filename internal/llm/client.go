// Package llm wraps the generation provider behind a rate-limited,
// concurrency-gated client.
//
// The provider is any OpenAI-compatible chat endpoint (Groq's
// compatibility API by default), reached through langchaingo. A
// fixed-size gate bounds in-flight calls across all projects to
// respect the provider quota; callers queue when the gate is
// saturated. Rate-limited responses are retried with exponential
// backoff.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/craftd/internal/config"
)

// providerCalls counts provider calls by outcome: ok, rate_limited or
// error.
var providerCalls = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "craftd",
	Subsystem: "llm",
	Name:      "calls_total",
	Help:      "Provider calls by outcome (ok, rate_limited, error).",
}, []string{"outcome"})

var (
	// ErrMalformedJSON indicates the provider returned text that does
	// not parse as the requested JSON structure.
	ErrMalformedJSON = errors.New("provider returned malformed JSON")

	// ErrAPIKeyMissing indicates no provider API key is configured.
	ErrAPIKeyMissing = errors.New("llm api key is not configured")
)

const baseBackoff = 2 * time.Second

// Request holds one generation call.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Client is the generation interface the agents depend on.
type Client interface {
	// Generate returns the raw text completion for req.
	Generate(ctx context.Context, req Request) (string, error)

	// GenerateStructured asks for strict JSON output, strips any
	// markdown fences the model added anyway, and unmarshals into out.
	GenerateStructured(ctx context.Context, req Request, out any) error
}

// contentGenerator is the slice of langchaingo's model interface the
// client uses. Tests substitute a fake.
type contentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

type client struct {
	model      contentGenerator
	gate       chan struct{}
	limiter    *rate.Limiter
	maxRetries int
	logger     *zap.Logger
}

// New creates a Client talking to the configured provider endpoint.
func New(cfg config.LLMConfig, logger *zap.Logger) (Client, error) {
	if !cfg.APIKey.IsSet() {
		return nil, ErrAPIKeyMissing
	}

	model, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(cfg.APIKey.Value()),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("create provider client: %w", err)
	}

	return NewWithModel(cfg, model, logger), nil
}

// NewWithModel creates a Client over an existing model implementation.
func NewWithModel(cfg config.LLMConfig, model contentGenerator, logger *zap.Logger) Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &client{
		model:      model,
		gate:       make(chan struct{}, maxConcurrent),
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		maxRetries: cfg.MaxRetries,
		logger:     logger,
	}
}

func (c *client) Generate(ctx context.Context, req Request) (string, error) {
	messages := make([]llms.MessageContent, 0, 2)
	if req.System != "" {
		messages = append(messages, llms.TextParts(schema.ChatMessageTypeSystem, req.System))
	}
	messages = append(messages, llms.TextParts(schema.ChatMessageTypeHuman, req.Prompt))

	opts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := baseBackoff * time.Duration(1<<(attempt-1))
			c.logger.Warn("provider rate limited, backing off",
				zap.Duration("backoff", backoff),
				zap.Int("attempt", attempt))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		text, err := c.generateOnce(ctx, messages, opts)
		if err == nil {
			providerCalls.WithLabelValues("ok").Inc()
			return text, nil
		}
		lastErr = err
		if !isRateLimited(err) {
			providerCalls.WithLabelValues("error").Inc()
			return "", err
		}
		providerCalls.WithLabelValues("rate_limited").Inc()
	}

	return "", fmt.Errorf("provider retries exhausted: %w", lastErr)
}

// generateOnce performs one gated, rate-limited provider call.
func (c *client) generateOnce(ctx context.Context, messages []llms.MessageContent, opts []llms.CallOption) (string, error) {
	select {
	case c.gate <- struct{}{}:
		defer func() { <-c.gate }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := c.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("provider call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("provider returned no choices")
	}
	return resp.Choices[0].Content, nil
}

func (c *client) GenerateStructured(ctx context.Context, req Request, out any) error {
	req.Prompt += "\n\nIMPORTANT: Return ONLY valid JSON. No markdown, no code blocks, no additional text."

	text, err := c.Generate(ctx, req)
	if err != nil {
		return err
	}

	cleaned := StripFences(text)
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		preview := cleaned
		if len(preview) > 200 {
			preview = preview[:200]
		}
		c.logger.Error("failed to parse provider JSON",
			zap.Error(err),
			zap.String("response_prefix", preview))
		return fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	return nil
}

// StripFences removes a wrapping markdown code fence, if present.
// Models frequently fence their output even when told not to.
func StripFences(text string) string {
	cleaned := strings.TrimSpace(text)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}

	lines := strings.Split(cleaned, "\n")
	if len(lines) < 2 {
		return cleaned
	}
	// Drop the opening fence line (which may carry a language tag).
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// isRateLimited reports whether err looks like a provider quota
// rejection. The OpenAI-compatible surface does not expose a typed
// error, so this matches the status text.
func isRateLimited(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "429") ||
		strings.Contains(msg, "too many requests")
}
