package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"scenebreak/internal/config"
	"scenebreak/internal/models"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

// ollamaClient реализует AIClient через нативный API Ollama
type ollamaClient struct {
	client  *api.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

func newOllamaClient(cfg *config.Config, httpClient *http.Client, logger *zap.Logger) (AIClient, error) {
	baseURL := cfg.AIBaseURL
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	// api.NewClient требует URL без суффикса /v1
	baseURL = strings.TrimSuffix(baseURL, "/v1")
	baseURL = strings.TrimSuffix(baseURL, "/")

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Ollama base URL '%s': %w", baseURL, err)
	}

	logger.Info("Ollama AI client created",
		zap.String("baseURL", baseURL),
		zap.String("model", cfg.AIModel),
		zap.Duration("timeout", cfg.AITimeout))

	return &ollamaClient{
		client:  api.NewClient(parsedURL, httpClient),
		model:   cfg.AIModel,
		timeout: cfg.AITimeout,
		logger:  logger.Named("OllamaClient"),
	}, nil
}

func (c *ollamaClient) GenerateText(ctx context.Context, userID string, systemPrompt string, userInput string, params GenerationParams) (string, UsageInfo, error) {
	usage := UsageInfo{}
	log := c.logger.With(zap.String("userID", userID), zap.String("model", c.model))

	if strings.TrimSpace(systemPrompt) == "" {
		observeAIRequest(c.model, userID, "error", 0)
		return "", usage, fmt.Errorf("%w: empty system prompt", models.ErrAIGenerationFailed)
	}

	stream := false
	options := map[string]interface{}{}
	if params.Temperature != nil {
		options["temperature"] = *params.Temperature
	}
	if params.MaxTokens != nil {
		options["num_predict"] = *params.MaxTokens
	}

	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userInput},
		},
		Stream:  &stream,
		Options: options,
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	startTime := time.Now()
	var resp api.ChatResponse
	err := c.client.Chat(requestCtx, req, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	duration := time.Since(startTime)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Error("Ollama request timed out", zap.Duration("timeout", c.timeout), zap.Error(err))
		} else {
			log.Error("Ollama request failed", zap.Duration("duration", duration), zap.Error(err))
		}
		observeAIRequest(c.model, userID, "error", duration)
		return "", usage, fmt.Errorf("%w: %v", models.ErrAIGenerationFailed, err)
	}

	if resp.Message.Content == "" {
		log.Warn("Ollama returned empty response", zap.Duration("duration", duration))
		observeAIRequest(c.model, userID, "error_empty_response", duration)
		return "", usage, fmt.Errorf("%w: empty response", models.ErrAIGenerationFailed)
	}

	observeAIRequest(c.model, userID, "success", duration)
	usage.PromptTokens = resp.PromptEvalCount
	usage.CompletionTokens = resp.EvalCount
	usage.TotalTokens = resp.PromptEvalCount + resp.EvalCount
	observeTokenUsage(c.model, userID, usage)

	log.Info("Ollama response received", zap.Duration("duration", duration), zap.Int("responseLength", len(resp.Message.Content)))
	return resp.Message.Content, usage, nil
}
