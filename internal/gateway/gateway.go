// Package gateway wraps configured model endpoints behind a common
// generation contract. Each gateway owns one model endpoint: calls are
// rate limited, transient failures (429, 5xx, transport errors) are
// retried with exponential backoff, and API keys never reach the logs.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/triad/internal/logging"
	"github.com/fyrsmithlabs/triad/internal/workflow"
)

const (
	defaultAnthropicEndpoint = "https://api.anthropic.com"
	defaultOpenAIEndpoint    = "https://api.openai.com"
	anthropicVersion         = "2023-06-01"

	defaultTimeout     = 60 * time.Second
	defaultMaxRetries  = 3
	defaultBaseBackoff = 1 * time.Second

	// Applied when a model config carries no requests-per-minute
	// budget. Bursts above the sustained rate are absorbed up to
	// defaultBurst in-flight requests.
	defaultRequestsPerMinute = 50
	defaultBurst             = 5
)

// GenerateRequest is one prompt for a model. Zero Temperature and
// MaxTokens fall back to the model's configured values.
type GenerateRequest struct {
	Prompt      string
	System      string
	Temperature float64
	MaxTokens   int
}

// TokenUsage reports prompt and completion token counts for one call.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// GenerateResponse is the model's reply to one GenerateRequest.
type GenerateResponse struct {
	Content    string     `json:"content"`
	Model      string     `json:"model"`
	StopReason string     `json:"stop_reason"`
	Usage      TokenUsage `json:"usage"`
}

// HealthStatus reports whether a model endpoint answered a probe.
type HealthStatus struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// Gateway is one configured model endpoint.
type Gateway interface {
	// Generate sends a prompt and returns the model's reply. Transient
	// failures are retried internally; the returned error reflects the
	// final attempt.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// HealthCheck sends a minimal one-token probe. It does not retry;
	// a failing endpoint should surface immediately at the workflow
	// gate.
	HealthCheck(ctx context.Context) *HealthStatus
}

// New builds a gateway for the model's provider tag. An unknown
// provider is a configuration error.
func New(cfg *workflow.ModelConfig, log *logging.Logger) (Gateway, error) {
	switch cfg.Provider {
	case "anthropic":
		return newAnthropicGateway(cfg, log)
	case "openai":
		return newOpenAIGateway(cfg, log)
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

// Factory builds gateways on demand and caches one per model id, so
// every workflow sharing a model also shares its rate limiter.
type Factory struct {
	log *logging.Logger

	mu       sync.Mutex
	gateways map[string]Gateway
}

// NewFactory creates an empty gateway cache.
func NewFactory(log *logging.Logger) *Factory {
	return &Factory{
		log:      log,
		gateways: make(map[string]Gateway),
	}
}

// ForModel returns the cached gateway for the model, building it on
// first use.
func (f *Factory) ForModel(cfg *workflow.ModelConfig) (Gateway, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if g, ok := f.gateways[cfg.ID]; ok {
		return g, nil
	}
	g, err := New(cfg, f.log)
	if err != nil {
		return nil, err
	}
	f.gateways[cfg.ID] = g
	return g, nil
}

// retryableError marks an error as transient so the retry loop knows
// to try again.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable reports whether the error is marked transient.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// generateWithRetries runs one attempt through the rate limiter, then
// retries transient failures with exponential backoff until maxRetries
// is exhausted or the context ends.
func generateWithRetries(ctx context.Context, limiter *rate.Limiter, maxRetries int, log *logging.Logger, fn func(context.Context) (*GenerateResponse, error)) (*GenerateResponse, error) {
	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := defaultBaseBackoff * time.Duration(1<<(attempt-1))
			log.Warn(ctx, "retrying model call",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := fn(ctx)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// healthStatus converts a probe result into a HealthStatus.
func healthStatus(err error) *HealthStatus {
	if err != nil {
		return &HealthStatus{Error: err.Error()}
	}
	return &HealthStatus{Healthy: true}
}
