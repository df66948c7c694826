package interfaces

import (
	"context"

	"scenebreak/internal/models"
)

// SceneEventPublisher публикует события об изменении сцен после успешного коммита.
type SceneEventPublisher interface {
	PublishSceneEvent(ctx context.Context, event models.SceneEvent) error
}
