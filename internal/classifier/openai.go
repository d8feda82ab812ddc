package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"github.com/amurex/inboxtagger/internal/instrumentation"
	"github.com/amurex/inboxtagger/internal/logging"
)

// Defaults for the Groq OpenAI-compatible endpoint.
const (
	DefaultBaseURL     = "https://api.groq.com/openai/v1"
	DefaultModel       = "llama-3.3-70b-versatile"
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 20
)

// ErrEmptyReply is returned when the model answers without any choice.
var ErrEmptyReply = errors.New("model returned no choices")

// OpenAIConfig configures an OpenAICompleter.
type OpenAIConfig struct {
	APIKey      string        `koanf:"api_key"`
	BaseURL     string        `koanf:"base_url"`
	Model       string        `koanf:"model"`
	Temperature float32       `koanf:"temperature"`
	MaxTokens   int           `koanf:"max_tokens"`
	Timeout     time.Duration `koanf:"timeout"`

	// Breaker settings. The breaker opens after BreakerFailures consecutive
	// failures and stays open for BreakerCooldown.
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerCooldown time.Duration `koanf:"breaker_cooldown"`

	// HTTPClient overrides the transport (tests).
	HTTPClient *http.Client `koanf:"-"`
}

func (c *OpenAIConfig) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = 30 * time.Second
	}
}

// OpenAICompleter sends prompts to an OpenAI-compatible chat completion API.
// Calls go through a circuit breaker so that an unavailable model fails fast
// for the rest of a batch instead of stalling every message.
type OpenAICompleter struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	cb          *gobreaker.CircuitBreaker
	metrics     *instrumentation.Metrics
	logger      *slog.Logger
}

// NewOpenAICompleter creates a completer. The API key is required.
func NewOpenAICompleter(cfg OpenAIConfig, metrics *instrumentation.Metrics, logger *slog.Logger) (*OpenAICompleter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("language model API key is required")
	}
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	logger = logging.WithService(logger, "llm")

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	}

	failures := cfg.BreakerFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm-classifier",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// Context cancellation says nothing about the model's health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})

	return &OpenAICompleter{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		cb:          cb,
		metrics:     metrics,
		logger:      logger,
	}, nil
}

// Model returns the configured model name.
func (c *OpenAICompleter) Model() string {
	return c.model
}

// Complete implements Completer.
func (c *OpenAICompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	ctx, span := instrumentation.StartLLMSpan(ctx, c.model)
	defer span.End()

	start := time.Now()
	out, err := c.cb.Execute(func() (interface{}, error) {
		return c.complete(ctx, p)
	})

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	instrumentation.SetSpanStatus(span, err)
	c.metrics.RecordLLMRequest(ctx, c.model, status, time.Since(start))

	if err != nil {
		return "", err
	}
	reply := out.(string)
	c.logger.Debug("model reply", slog.String("reply", reply))
	return reply, nil
}

func (c *OpenAICompleter) complete(ctx context.Context, p Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: p.User},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("chat completion failed (status %d): %w", apiErr.HTTPStatusCode, err)
		}
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
