package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"scenebreak/internal/config"
	"scenebreak/internal/models"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

// anthropicDefaultMaxTokens используется, если MaxTokens не задан: Messages API требует лимит.
const anthropicDefaultMaxTokens = 2000

// anthropicClient реализует AIClient через Anthropic Messages API
type anthropicClient struct {
	client anthropic.Client
	model  string
	logger *zap.Logger
}

func newAnthropicClient(cfg *config.Config, logger *zap.Logger) AIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.AIAPIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.AITimeout),
	}
	if cfg.AIBaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.AIBaseURL, "/")))
	}

	logger.Info("Anthropic AI client created", zap.String("model", cfg.AIModel), zap.Duration("timeout", cfg.AITimeout))
	return &anthropicClient{
		client: anthropic.NewClient(opts...),
		model:  cfg.AIModel,
		logger: logger.Named("AnthropicClient"),
	}
}

func (c *anthropicClient) GenerateText(ctx context.Context, userID string, systemPrompt string, userInput string, params GenerationParams) (string, UsageInfo, error) {
	usage := UsageInfo{}
	log := c.logger.With(zap.String("userID", userID), zap.String("model", c.model))

	if strings.TrimSpace(systemPrompt) == "" {
		observeAIRequest(c.model, userID, "error", 0)
		return "", usage, fmt.Errorf("%w: empty system prompt", models.ErrAIGenerationFailed)
	}

	maxTokens := anthropicDefaultMaxTokens
	if params.MaxTokens != nil {
		maxTokens = *params.MaxTokens
	}

	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userInput)),
		},
	}
	if params.Temperature != nil {
		req.Temperature = anthropic.Float(*params.Temperature)
	}

	startTime := time.Now()
	msg, err := c.client.Messages.New(ctx, req)
	duration := time.Since(startTime)

	if err != nil {
		log.Error("Anthropic request failed", zap.Duration("duration", duration), zap.Error(err))
		observeAIRequest(c.model, userID, "error", duration)
		return "", usage, fmt.Errorf("%w: %v", models.ErrAIGenerationFailed, err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		log.Warn("Anthropic returned no text content", zap.Duration("duration", duration), zap.String("stopReason", string(msg.StopReason)))
		observeAIRequest(c.model, userID, "error_empty_response", duration)
		return "", usage, fmt.Errorf("%w: empty response", models.ErrAIGenerationFailed)
	}

	observeAIRequest(c.model, userID, "success", duration)
	usage.PromptTokens = int(msg.Usage.InputTokens)
	usage.CompletionTokens = int(msg.Usage.OutputTokens)
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	observeTokenUsage(c.model, userID, usage)

	log.Info("Anthropic response received", zap.Duration("duration", duration), zap.Int("responseLength", text.Len()))
	return text.String(), usage, nil
}
