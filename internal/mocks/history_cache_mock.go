package mocks

import (
	"context"

	"scenebreak/internal/interfaces"
	"scenebreak/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// HistoryCache - мок interfaces.HistoryCache.
type HistoryCache struct {
	mock.Mock
}

var _ interfaces.HistoryCache = (*HistoryCache)(nil)

func (m *HistoryCache) Get(ctx context.Context, userID uuid.UUID) ([]models.SceneHistoryItem, int64, bool, error) {
	args := m.Called(ctx, userID)
	items, _ := args.Get(0).([]models.SceneHistoryItem)
	generation, _ := args.Get(1).(int64)
	return items, generation, args.Bool(2), args.Error(3)
}

func (m *HistoryCache) Set(ctx context.Context, userID uuid.UUID, generation int64, items []models.SceneHistoryItem) error {
	args := m.Called(ctx, userID, generation, items)
	return args.Error(0)
}

func (m *HistoryCache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}
