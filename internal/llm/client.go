// Package llm calls an OpenAI-compatible chat completion endpoint (Groq by
// default) to turn prompts into text.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/resilience"
)

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

type Client struct {
	api    *openai.Client
	cfg    config.LLMConfig
	logger *slog.Logger
}

func New(cfg config.LLMConfig) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &Client{
		api:    openai.NewClientWithConfig(oc),
		cfg:    cfg,
		logger: slog.Default().With("component", "llm", "model", cfg.Model),
	}
}

// Generate sends prompt as a single user message. Each attempt is bounded
// by the per-call timeout; rate limits and server errors are retried.
// Failures wrap ErrGeneration.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
	// A zero temperature is dropped by omitempty and the server default
	// applies instead.
	if req.Temperature == 0 {
		req.Temperature = math.SmallestNonzeroFloat32
	}

	var text string
	err := resilience.Retry(ctx, "llm.generate", resilience.RetryConfig{
		MaxAttempts: max(c.cfg.RetryAttempts, 1),
		Retryable:   retryable,
	}, func(ctx context.Context) error {
		callCtx := ctx
		if c.cfg.CallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.cfg.CallTimeout)
			defer cancel()
		}
		resp, err := c.api.CreateChatCompletion(callCtx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return errNoChoices
		}
		text = strings.TrimSpace(resp.Choices[0].Message.Content)
		logger.FromContext(ctx).Debug("generation finished",
			"prompt_chars", len(prompt),
			"completion_tokens", resp.Usage.CompletionTokens,
		)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %v", apperrors.ErrGeneration, err)
	}
	return text, nil
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

var errNoChoices = errors.New("completion returned no choices")

func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return !errors.Is(err, errNoChoices)
}
