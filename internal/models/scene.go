package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultSceneTitle используется, когда пользователь не задал заголовок сцены.
const DefaultSceneTitle = "Untitled Scene"

// Scene - сохраненный фрагмент сценария.
type Scene struct {
	ID          uuid.UUID `json:"id" db:"id"`
	UserID      uuid.UUID `json:"userId" db:"user_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	SceneText   string    `json:"sceneText" db:"scene_text"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// BreakdownContent содержит восемь смысловых полей разбора.
// JSON-имена совпадают с контрактом POST /breakdown.
type BreakdownContent struct {
	Characters     []string `json:"characters" db:"characters"`
	Locations      []string `json:"locations" db:"locations"`
	Themes         []string `json:"themes" db:"themes"`
	Tone           string   `json:"tone" db:"tone"`
	Structure      string   `json:"structure" db:"structure"`
	TechnicalNotes string   `json:"technicalNotes" db:"technical_notes"`
	VisualElements string   `json:"visualElements" db:"visual_elements"`
	EmotionalArc   string   `json:"emotionalArc" db:"emotional_arc"`
}

// Normalize заменяет nil-срезы пустыми, чтобы в JSON и в БД не попадал null.
func (c *BreakdownContent) Normalize() {
	if c.Characters == nil {
		c.Characters = []string{}
	}
	if c.Locations == nil {
		c.Locations = []string{}
	}
	if c.Themes == nil {
		c.Themes = []string{}
	}
}

// Breakdown - сохраненный разбор, всегда привязан к существующей сцене.
type Breakdown struct {
	ID      uuid.UUID `json:"id" db:"id"`
	SceneID uuid.UUID `json:"sceneId" db:"scene_id"`
	UserID  uuid.UUID `json:"userId" db:"user_id"`
	BreakdownContent
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// SceneHistoryItem - элемент истории: сцена и ее последний разбор.
type SceneHistoryItem struct {
	Scene
	Breakdown Breakdown `json:"breakdown"`
}

// SceneDetail - сцена со всеми разборами, от нового к старому.
// Breakdown дублирует первый элемент Breakdowns для клиентов, которым нужен один разбор.
type SceneDetail struct {
	Scene
	Breakdown  *Breakdown  `json:"breakdown"`
	Breakdowns []Breakdown `json:"breakdowns"`
}

// NewSceneDetail собирает SceneDetail, выставляя Breakdown в самый свежий разбор.
func NewSceneDetail(scene Scene, breakdowns []Breakdown) *SceneDetail {
	if breakdowns == nil {
		breakdowns = []Breakdown{}
	}
	detail := &SceneDetail{Scene: scene, Breakdowns: breakdowns}
	if len(breakdowns) > 0 {
		latest := breakdowns[0]
		detail.Breakdown = &latest
	}
	return detail
}
