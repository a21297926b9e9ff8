// Package openai talks to the scoring oracle through any OpenAI-compatible
// chat completions endpoint (Gemini's compatibility API in production).
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/carscore/internal/domain"
	"github.com/kailas-cloud/carscore/internal/metrics"
)

// Generator sends prompts to chat completion models.
type Generator struct {
	client       *openai.Client
	temperature  float32
	maxTokens    int
	systemPrompt string
	jsonMode     bool
	logger       *zap.Logger
}

// Config holds the oracle endpoint settings.
type Config struct {
	APIKey       string
	BaseURL      string
	Temperature  float32
	MaxTokens    int
	SystemPrompt string
	// JSONMode asks the endpoint for a JSON object response format.
	JSONMode bool
	Logger   *zap.Logger
}

// NewGenerator creates an OpenAI-compatible oracle client.
func NewGenerator(cfg *Config) *Generator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{
		client:       openai.NewClientWithConfig(clientCfg),
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		systemPrompt: cfg.SystemPrompt,
		jsonMode:     cfg.JSONMode,
		logger:       logger,
	}
}

// Generate returns the text of the first choice. Transport metrics are recorded here.
func (g *Generator) Generate(ctx context.Context, model, prompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if g.systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: g.systemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: g.temperature,
	}
	if g.maxTokens > 0 {
		req.MaxTokens = g.maxTokens
	}
	if g.jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.OracleRequestsTotal.WithLabelValues(model, "error").Inc()
		return "", parseAPIError(err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		metrics.OracleRequestsTotal.WithLabelValues(model, "empty").Inc()
		return "", fmt.Errorf("empty completion from %s: %w", model, domain.ErrOracleError)
	}

	metrics.OracleRequestsTotal.WithLabelValues(model, "success").Inc()
	metrics.OracleRequestDuration.WithLabelValues(model).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.OracleTokensTotal.WithLabelValues(model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.OracleTokensTotal.WithLabelValues(model, "completion").Add(float64(resp.Usage.CompletionTokens))
	}

	g.logger.Debug("Oracle completion",
		zap.String("model", model),
		zap.Duration("duration", duration),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)

	return resp.Choices[0].Message.Content, nil
}

// HealthCheck verifies API availability via ListModels.
func (g *Generator) HealthCheck(ctx context.Context) error {
	if _, err := g.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError extracts a readable message from the API response.
// Every error wraps domain.ErrOracleError.
func parseAPIError(err error) error {
	wrap := domain.ErrOracleError

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("oracle API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if detail := extractDetail(reqErr.Body); detail != "" {
			return fmt.Errorf("oracle API error %d: %s: %w",
				reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("oracle API error %d: %w", reqErr.HTTPStatusCode, wrap)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("oracle request: %w: %w", wrap, err)
	}
	return fmt.Errorf("oracle request failed: %w", wrap)
}

// extractDetail reads an error message from a JSON body. Gemini wraps its
// error object in a one-element array.
func extractDetail(body []byte) string {
	type payload struct {
		Detail string `json:"detail"`
		Error  struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	pick := func(p payload) string {
		if p.Detail != "" {
			return p.Detail
		}
		return p.Error.Message
	}

	var single payload
	if json.Unmarshal(body, &single) == nil {
		if msg := pick(single); msg != "" {
			return msg
		}
	}
	var list []payload
	if json.Unmarshal(body, &list) == nil && len(list) > 0 {
		return pick(list[0])
	}
	return ""
}
