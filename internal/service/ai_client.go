package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"scenebreak/internal/config"
	"scenebreak/internal/models"

	"github.com/pkoukk/tiktoken-go"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	defaultOpenAIBaseURL = "https://api.groq.com/openai/v1"
	defaultOllamaBaseURL = "http://localhost:11434"
)

// GenerationParams - параметры сэмплирования.
// Указатели позволяют отличить 0 от отсутствия значения.
type GenerationParams struct {
	Temperature *float64
	MaxTokens   *int
}

// UsageInfo содержит информацию об использовании токенов
type UsageInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Estimated        bool // true, если провайдер не вернул usage и токены посчитаны локально
}

// AIClient интерфейс для взаимодействия с моделью.
// Выполняется ровно одна попытка, повторов нет.
type AIClient interface {
	// GenerateText отправляет системное и пользовательское сообщения и возвращает текст первого варианта ответа.
	GenerateText(ctx context.Context, userID string, systemPrompt string, userInput string, params GenerationParams) (string, UsageInfo, error)
}

// NewAIClient создает клиент в зависимости от AI_CLIENT_TYPE.
// Наличие ключа проверяет вызывающий код через cfg.AIConfigured().
func NewAIClient(cfg *config.Config, logger *zap.Logger) (AIClient, error) {
	httpClient := &http.Client{Timeout: cfg.AITimeout}

	switch strings.ToLower(cfg.AIClientType) {
	case "openai", "groq", "openrouter":
		openaiConfig := openaigo.DefaultConfig(cfg.AIAPIKey)
		openaiConfig.BaseURL = defaultOpenAIBaseURL
		if cfg.AIBaseURL != "" {
			openaiConfig.BaseURL = cfg.AIBaseURL
		}
		openaiConfig.HTTPClient = httpClient
		logger.Info("OpenAI-compatible AI client created",
			zap.String("baseURL", openaiConfig.BaseURL),
			zap.String("model", cfg.AIModel),
			zap.Duration("timeout", cfg.AITimeout))
		return &openAIClient{
			client: openaigo.NewClientWithConfig(openaiConfig),
			model:  cfg.AIModel,
			logger: logger.Named("OpenAIClient"),
		}, nil
	case "ollama":
		return newOllamaClient(cfg, httpClient, logger)
	case "anthropic":
		return newAnthropicClient(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown AI client type: '%s'", cfg.AIClientType)
	}
}

// --- OpenAI-compatible Client Implementation ---

type openAIClient struct {
	client *openaigo.Client
	model  string
	logger *zap.Logger
}

func (c *openAIClient) GenerateText(ctx context.Context, userID string, systemPrompt string, userInput string, params GenerationParams) (string, UsageInfo, error) {
	usage := UsageInfo{}
	log := c.logger.With(zap.String("userID", userID), zap.String("model", c.model))

	if strings.TrimSpace(systemPrompt) == "" {
		observeAIRequest(c.model, userID, "error", 0)
		return "", usage, fmt.Errorf("%w: empty system prompt", models.ErrAIGenerationFailed)
	}

	messages := []openaigo.ChatCompletionMessage{
		{Role: openaigo.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openaigo.ChatMessageRoleUser, Content: userInput},
	}

	startTime := time.Now()
	log.Debug("Sending request to AI", zap.Int("systemPromptBytes", len(systemPrompt)), zap.Int("userInputBytes", len(userInput)))

	resp, err := c.client.CreateChatCompletion(ctx, openaigo.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: float32Val(params.Temperature),
		MaxTokens:   intVal(params.MaxTokens),
	})
	duration := time.Since(startTime)

	if err != nil {
		log.Error("AI API request failed", zap.Duration("duration", duration), zap.Error(err))
		observeAIRequest(c.model, userID, "error", duration)
		return "", usage, fmt.Errorf("%w: %v", models.ErrAIGenerationFailed, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		log.Warn("AI API returned empty response", zap.Duration("duration", duration))
		observeAIRequest(c.model, userID, "error_empty_response", duration)
		return "", usage, fmt.Errorf("%w: empty response", models.ErrAIGenerationFailed)
	}

	generatedText := resp.Choices[0].Message.Content
	observeAIRequest(c.model, userID, "success", duration)

	if resp.Usage.TotalTokens > 0 {
		usage.PromptTokens = resp.Usage.PromptTokens
		usage.CompletionTokens = resp.Usage.CompletionTokens
		usage.TotalTokens = resp.Usage.TotalTokens
	} else {
		usage = estimateUsage(c.model, systemPrompt+userInput, generatedText)
	}
	observeTokenUsage(c.model, userID, usage)

	log.Info("AI response received",
		zap.Duration("duration", duration),
		zap.Int("responseLength", len(generatedText)),
		zap.Int("totalTokens", usage.TotalTokens),
		zap.Bool("estimated", usage.Estimated))
	return generatedText, usage, nil
}

// estimateUsage считает токены локально, когда провайдер не вернул usage.
// Для моделей, неизвестных tiktoken, используется cl100k_base.
func estimateUsage(model, prompt, completion string) UsageInfo {
	tke, err := tiktoken.EncodingForModel(model)
	if err != nil {
		tke, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return UsageInfo{}
		}
	}
	promptTokens := len(tke.Encode(prompt, nil, nil))
	completionTokens := len(tke.Encode(completion, nil, nil))
	return UsageInfo{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		Estimated:        true,
	}
}

func float32Val(f64 *float64) float32 {
	if f64 == nil {
		return 0
	}
	return float32(*f64)
}

func intVal(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}
