package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/triad/internal/config"
	"github.com/fyrsmithlabs/triad/internal/logging"
	"github.com/fyrsmithlabs/triad/internal/workflow"
)

// openaiGateway speaks the OpenAI chat completions API. The system
// prompt travels as a leading system message, authentication as a
// bearer token. A custom endpoint serves any compatible server; the
// API key is only mandatory against the hosted API, self-hosted
// endpoints may omit it.
type openaiGateway struct {
	model       string
	apiKey      config.Secret
	endpoint    string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxRetries  int
	log         *logging.Logger
}

func newOpenAIGateway(cfg *workflow.ModelConfig, log *logging.Logger) (*openaiGateway, error) {
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = defaultOpenAIEndpoint
	}
	if !cfg.APIKey.IsSet() && endpoint == defaultOpenAIEndpoint {
		return nil, fmt.Errorf("model %q: openai API key required", cfg.ID)
	}

	timeout := defaultTimeout
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = defaultRequestsPerMinute
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	return &openaiGateway{
		model:       cfg.Model,
		apiKey:      cfg.APIKey,
		endpoint:    endpoint,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter:    rate.NewLimiter(rate.Limit(float64(rpm)/60.0), defaultBurst),
		maxRetries: maxRetries,
		log:        log.Named("gateway").With(zap.String("provider", "openai"), zap.String("model", cfg.Model)),
	}, nil
}

// openaiRequest is the chat completions request body.
type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// openaiResponse is the chat completions response body.
type openaiResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type openaiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Param   string `json:"param"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (g *openaiGateway) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	body := g.buildRequest(req)

	start := time.Now()
	resp, err := generateWithRetries(ctx, g.limiter, g.maxRetries, g.log, func(ctx context.Context) (*GenerateResponse, error) {
		return g.doRequest(ctx, body)
	})
	if err != nil {
		return nil, err
	}

	g.log.Debug(ctx, "model response",
		zap.Duration("duration", time.Since(start)),
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
		zap.String("stop_reason", resp.StopReason))
	return resp, nil
}

func (g *openaiGateway) HealthCheck(ctx context.Context) *HealthStatus {
	probe := g.buildRequest(&GenerateRequest{Prompt: "ping", MaxTokens: 1})
	if err := g.limiter.Wait(ctx); err != nil {
		return healthStatus(err)
	}
	_, err := g.doRequest(ctx, probe)
	return healthStatus(err)
}

func (g *openaiGateway) buildRequest(req *GenerateRequest) openaiRequest {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = g.maxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = g.temperature
	}

	messages := make([]openaiMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openaiMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, openaiMessage{Role: "user", Content: req.Prompt})

	return openaiRequest{
		Model:       g.model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Messages:    messages,
	}
}

// doRequest performs a single HTTP call against the chat completions
// API.
func (g *openaiGateway) doRequest(ctx context.Context, req openaiRequest) (*GenerateResponse, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+"/v1/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if g.apiKey.IsSet() {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey.Value())
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, &retryableError{err: fmt.Errorf("API request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &retryableError{err: fmt.Errorf("rate limited (429)")}
	}
	if resp.StatusCode >= 500 {
		return nil, &retryableError{err: fmt.Errorf("server error (%d): %s", resp.StatusCode, string(body))}
	}
	if resp.StatusCode != http.StatusOK {
		var errResp openaiError
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}

	var decoded openaiResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return nil, fmt.Errorf("empty response from API")
	}

	choice := decoded.Choices[0]
	return &GenerateResponse{
		Content:    choice.Message.Content,
		Model:      decoded.Model,
		StopReason: choice.FinishReason,
		Usage: TokenUsage{
			InputTokens:  decoded.Usage.PromptTokens,
			OutputTokens: decoded.Usage.CompletionTokens,
		},
	}, nil
}

var _ Gateway = (*openaiGateway)(nil)
