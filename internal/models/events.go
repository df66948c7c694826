package models

import (
	"time"

	"github.com/google/uuid"
)

// SceneEventType - тип события о сцене.
type SceneEventType string

const (
	SceneEventSaved          SceneEventType = "scene.saved"
	SceneEventBreakdownAdded SceneEventType = "scene.breakdown_added"
	SceneEventDeleted        SceneEventType = "scene.deleted"
)

// SceneEvent - сообщение, которое уходит в очередь событий.
type SceneEvent struct {
	EventID     string         `json:"event_id"`
	Type        SceneEventType `json:"type"`
	SceneID     uuid.UUID      `json:"scene_id"`
	UserID      uuid.UUID      `json:"user_id"`
	BreakdownID *uuid.UUID     `json:"breakdown_id,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

// NewSceneEvent заполняет EventID и OccurredAt.
func NewSceneEvent(eventType SceneEventType, sceneID, userID uuid.UUID) SceneEvent {
	return SceneEvent{
		EventID:    uuid.NewString(),
		Type:       eventType,
		SceneID:    sceneID,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	}
}
