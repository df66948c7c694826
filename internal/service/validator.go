package service

import (
	"strings"

	"scenebreak/internal/models"
)

// ValidateSceneText отклоняет пустой текст сцены. Длина не ограничивается.
// Строка только из пробельных символов считается пустой.
func ValidateSceneText(sceneText string) error {
	if strings.TrimSpace(sceneText) == "" {
		return models.ErrSceneTextRequired
	}
	return nil
}
