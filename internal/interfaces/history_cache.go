package interfaces

import (
	"context"

	"scenebreak/internal/models"

	"github.com/google/uuid"
)

// HistoryCache кэширует историю сцен пользователя.
//
// Каждое Invalidate увеличивает поколение кэша пользователя. Set принимает поколение,
// прочитанное через Get до обращения к БД, и ничего не пишет, если поколение с тех пор сменилось.
type HistoryCache interface {
	// Get возвращает историю, текущее поколение и признак попадания в кэш.
	Get(ctx context.Context, userID uuid.UUID) (items []models.SceneHistoryItem, generation int64, hit bool, err error)
	Set(ctx context.Context, userID uuid.UUID, generation int64, items []models.SceneHistoryItem) error
	Invalidate(ctx context.Context, userID uuid.UUID) error
}
