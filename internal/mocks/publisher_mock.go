package mocks

import (
	"context"

	"scenebreak/internal/interfaces"
	"scenebreak/internal/models"

	"github.com/stretchr/testify/mock"
)

// SceneEventPublisher - мок interfaces.SceneEventPublisher.
type SceneEventPublisher struct {
	mock.Mock
}

var _ interfaces.SceneEventPublisher = (*SceneEventPublisher)(nil)

func (m *SceneEventPublisher) PublishSceneEvent(ctx context.Context, event models.SceneEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
