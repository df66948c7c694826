package mocks

import (
	"context"

	"scenebreak/internal/interfaces"
	"scenebreak/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// SceneRepository - мок interfaces.SceneRepository.
type SceneRepository struct {
	mock.Mock
}

var _ interfaces.SceneRepository = (*SceneRepository)(nil)

func (m *SceneRepository) CreateWithBreakdown(ctx context.Context, scene *models.Scene, content models.BreakdownContent) (*models.SceneDetail, error) {
	args := m.Called(ctx, scene, content)
	detail, _ := args.Get(0).(*models.SceneDetail)
	return detail, args.Error(1)
}

func (m *SceneRepository) AddBreakdown(ctx context.Context, sceneID, userID uuid.UUID, content models.BreakdownContent) (*models.Breakdown, error) {
	args := m.Called(ctx, sceneID, userID, content)
	breakdown, _ := args.Get(0).(*models.Breakdown)
	return breakdown, args.Error(1)
}

func (m *SceneRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.SceneHistoryItem, error) {
	args := m.Called(ctx, userID)
	items, _ := args.Get(0).([]models.SceneHistoryItem)
	return items, args.Error(1)
}

func (m *SceneRepository) GetByID(ctx context.Context, sceneID, userID uuid.UUID) (*models.SceneDetail, error) {
	args := m.Called(ctx, sceneID, userID)
	detail, _ := args.Get(0).(*models.SceneDetail)
	return detail, args.Error(1)
}

func (m *SceneRepository) Delete(ctx context.Context, sceneID, userID uuid.UUID) error {
	args := m.Called(ctx, sceneID, userID)
	return args.Error(0)
}
