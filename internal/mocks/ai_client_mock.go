package mocks

import (
	"context"

	"scenebreak/internal/service"

	"github.com/stretchr/testify/mock"
)

// AIClient - мок service.AIClient.
type AIClient struct {
	mock.Mock
}

var _ service.AIClient = (*AIClient)(nil)

func (m *AIClient) GenerateText(ctx context.Context, userID string, systemPrompt string, userInput string, params service.GenerationParams) (string, service.UsageInfo, error) {
	args := m.Called(ctx, userID, systemPrompt, userInput, params)
	usage, _ := args.Get(1).(service.UsageInfo)
	return args.String(0), usage, args.Error(2)
}
