package mocks

import (
	"context"

	"scenebreak/internal/models"
	"scenebreak/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// BreakdownService - мок service.BreakdownService для тестов обработчиков.
type BreakdownService struct {
	mock.Mock
}

var _ service.BreakdownService = (*BreakdownService)(nil)

func (m *BreakdownService) Analyze(ctx context.Context, requester service.Requester, sceneText string) (*models.BreakdownContent, error) {
	args := m.Called(ctx, requester, sceneText)
	content, _ := args.Get(0).(*models.BreakdownContent)
	return content, args.Error(1)
}

func (m *BreakdownService) SaveScene(ctx context.Context, userID uuid.UUID, input service.SaveSceneInput) (*models.SceneDetail, error) {
	args := m.Called(ctx, userID, input)
	detail, _ := args.Get(0).(*models.SceneDetail)
	return detail, args.Error(1)
}

func (m *BreakdownService) Reanalyze(ctx context.Context, userID, sceneID uuid.UUID) (*models.Breakdown, error) {
	args := m.Called(ctx, userID, sceneID)
	breakdown, _ := args.Get(0).(*models.Breakdown)
	return breakdown, args.Error(1)
}

func (m *BreakdownService) ListHistory(ctx context.Context, userID uuid.UUID) ([]models.SceneHistoryItem, error) {
	args := m.Called(ctx, userID)
	items, _ := args.Get(0).([]models.SceneHistoryItem)
	return items, args.Error(1)
}

func (m *BreakdownService) GetScene(ctx context.Context, userID, sceneID uuid.UUID) (*models.SceneDetail, error) {
	args := m.Called(ctx, userID, sceneID)
	detail, _ := args.Get(0).(*models.SceneDetail)
	return detail, args.Error(1)
}

func (m *BreakdownService) DeleteScene(ctx context.Context, userID, sceneID uuid.UUID) error {
	args := m.Called(ctx, userID, sceneID)
	return args.Error(0)
}
