package interfaces

import (
	"context"

	"scenebreak/internal/models"

	"github.com/google/uuid"
)

// SceneRepository хранит сцены и их разборы.
type SceneRepository interface {
	// CreateWithBreakdown сохраняет сцену и разбор в одной транзакции.
	// При любой ошибке не сохраняется ничего.
	CreateWithBreakdown(ctx context.Context, scene *models.Scene, content models.BreakdownContent) (*models.SceneDetail, error)

	// AddBreakdown добавляет новый разбор к существующей сцене пользователя.
	// Возвращает models.ErrNotFound, если сцены нет или она чужая.
	AddBreakdown(ctx context.Context, sceneID, userID uuid.UUID, content models.BreakdownContent) (*models.Breakdown, error)

	// ListByUser возвращает сцены пользователя с последним разбором, от новых к старым.
	// Сцены без разборов не возвращаются.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.SceneHistoryItem, error)

	// GetByID возвращает сцену со всеми разборами.
	GetByID(ctx context.Context, sceneID, userID uuid.UUID) (*models.SceneDetail, error)

	// Delete удаляет только запись сцены. Разборы удаляются каскадом на уровне схемы.
	Delete(ctx context.Context, sceneID, userID uuid.UUID) error
}
