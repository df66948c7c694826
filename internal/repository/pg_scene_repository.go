package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"scenebreak/internal/interfaces"
	"scenebreak/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Compile-time check to ensure implementation satisfies the interface.
var _ interfaces.SceneRepository = (*pgSceneRepository)(nil)

// PgPool - то, что репозиторию нужно от *pgxpool.Pool.
type PgPool interface {
	interfaces.DBTX
	interfaces.TxBeginner
}

type pgSceneRepository struct {
	db     PgPool
	tx     *TransactionHelper
	logger *zap.Logger
}

// NewPgSceneRepository создает репозиторий сцен поверх пула pgx.
func NewPgSceneRepository(db PgPool, logger *zap.Logger) interfaces.SceneRepository {
	logger = logger.Named("PgSceneRepo")
	return &pgSceneRepository{
		db:     db,
		tx:     NewTransactionHelper(db, logger),
		logger: logger,
	}
}

const insertSceneQuery = `
INSERT INTO scenes (id, user_id, title, description, scene_text)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at`

const insertBreakdownQuery = `
INSERT INTO breakdowns (id, scene_id, user_id, characters, locations, themes, tone, structure, technical_notes, visual_elements, emotional_arc)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING created_at`

// Разбор добавляется только к сцене того же пользователя.
const insertBreakdownForOwnedSceneQuery = `
INSERT INTO breakdowns (id, scene_id, user_id, characters, locations, themes, tone, structure, technical_notes, visual_elements, emotional_arc)
SELECT $1, s.id, s.user_id, $4, $5, $6, $7, $8, $9, $10, $11
FROM scenes s
WHERE s.id = $2 AND s.user_id = $3
RETURNING created_at`

const listScenesWithLatestBreakdownQuery = `
SELECT s.id, s.user_id, s.title, s.description, s.scene_text, s.created_at,
       b.id AS breakdown_id, b.characters, b.locations, b.themes, b.tone, b.structure,
       b.technical_notes, b.visual_elements, b.emotional_arc, b.created_at AS breakdown_created_at
FROM scenes s
JOIN LATERAL (
    SELECT * FROM breakdowns
    WHERE scene_id = s.id
    ORDER BY created_at DESC, id DESC
    LIMIT 1
) b ON TRUE
WHERE s.user_id = $1
ORDER BY s.created_at DESC, s.id DESC`

const getSceneQuery = `
SELECT id, user_id, title, description, scene_text, created_at
FROM scenes
WHERE id = $1 AND user_id = $2`

const listBreakdownsBySceneQuery = `
SELECT id, scene_id, user_id, characters, locations, themes, tone, structure,
       technical_notes, visual_elements, emotional_arc, created_at
FROM breakdowns
WHERE scene_id = $1
ORDER BY created_at DESC, id DESC`

const deleteSceneQuery = `DELETE FROM scenes WHERE id = $1 AND user_id = $2`

// historyRow - плоская строка результата LATERAL JOIN.
type historyRow struct {
	models.Scene
	BreakdownID uuid.UUID `db:"breakdown_id"`
	models.BreakdownContent
	BreakdownCreatedAt time.Time `db:"breakdown_created_at"`
}

func breakdownArgs(b *models.Breakdown) []any {
	return []any{
		b.ID, b.SceneID, b.UserID,
		b.Characters, b.Locations, b.Themes,
		b.Tone, b.Structure, b.TechnicalNotes, b.VisualElements, b.EmotionalArc,
	}
}

// CreateWithBreakdown сохраняет сцену и разбор в одной транзакции.
func (r *pgSceneRepository) CreateWithBreakdown(ctx context.Context, scene *models.Scene, content models.BreakdownContent) (*models.SceneDetail, error) {
	if scene.ID == uuid.Nil {
		scene.ID = uuid.New()
	}
	if scene.Title == "" {
		scene.Title = models.DefaultSceneTitle
	}
	content.Normalize()

	breakdown := models.Breakdown{
		ID:               uuid.New(),
		SceneID:          scene.ID,
		UserID:           scene.UserID,
		BreakdownContent: content,
	}
	logFields := []zap.Field{
		zap.String("sceneID", scene.ID.String()),
		zap.String("userID", scene.UserID.String()),
	}

	err := r.tx.WithTransaction(ctx, func(ctx context.Context, tx interfaces.DBTX) error {
		if err := tx.QueryRow(ctx, insertSceneQuery,
			scene.ID, scene.UserID, scene.Title, scene.Description, scene.SceneText,
		).Scan(&scene.CreatedAt); err != nil {
			return fmt.Errorf("insert scene: %w", err)
		}
		if err := tx.QueryRow(ctx, insertBreakdownQuery, breakdownArgs(&breakdown)...).Scan(&breakdown.CreatedAt); err != nil {
			return fmt.Errorf("insert breakdown: %w", err)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to save scene with breakdown", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}

	r.logger.Info("Scene saved with breakdown", append(logFields, zap.String("breakdownID", breakdown.ID.String()))...)
	return models.NewSceneDetail(*scene, []models.Breakdown{breakdown}), nil
}

// AddBreakdown добавляет разбор к существующей сцене пользователя.
func (r *pgSceneRepository) AddBreakdown(ctx context.Context, sceneID, userID uuid.UUID, content models.BreakdownContent) (*models.Breakdown, error) {
	content.Normalize()
	breakdown := &models.Breakdown{
		ID:               uuid.New(),
		SceneID:          sceneID,
		UserID:           userID,
		BreakdownContent: content,
	}
	logFields := []zap.Field{zap.String("sceneID", sceneID.String()), zap.String("userID", userID.String())}

	err := r.db.QueryRow(ctx, insertBreakdownForOwnedSceneQuery, breakdownArgs(breakdown)...).Scan(&breakdown.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Warn("Scene for new breakdown not found", logFields...)
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to add breakdown", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}

	r.logger.Info("Breakdown added to scene", append(logFields, zap.String("breakdownID", breakdown.ID.String()))...)
	return breakdown, nil
}

// ListByUser возвращает сцены пользователя с последним разбором.
func (r *pgSceneRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.SceneHistoryItem, error) {
	var rows []historyRow
	if err := pgxscan.Select(ctx, r.db, &rows, listScenesWithLatestBreakdownQuery, userID); err != nil {
		r.logger.Error("Failed to list scenes", zap.String("userID", userID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to list scenes for user %s: %w", userID, err)
	}

	items := make([]models.SceneHistoryItem, 0, len(rows))
	for _, row := range rows {
		row.BreakdownContent.Normalize()
		items = append(items, models.SceneHistoryItem{
			Scene: row.Scene,
			Breakdown: models.Breakdown{
				ID:               row.BreakdownID,
				SceneID:          row.Scene.ID,
				UserID:           row.Scene.UserID,
				BreakdownContent: row.BreakdownContent,
				CreatedAt:        row.BreakdownCreatedAt,
			},
		})
	}
	r.logger.Debug("Scenes listed", zap.String("userID", userID.String()), zap.Int("count", len(items)))
	return items, nil
}

// GetByID возвращает сцену пользователя со всеми разборами.
func (r *pgSceneRepository) GetByID(ctx context.Context, sceneID, userID uuid.UUID) (*models.SceneDetail, error) {
	logFields := []zap.Field{zap.String("sceneID", sceneID.String()), zap.String("userID", userID.String())}

	var scene models.Scene
	if err := pgxscan.Get(ctx, r.db, &scene, getSceneQuery, sceneID, userID); err != nil {
		if pgxscan.NotFound(err) {
			r.logger.Debug("Scene not found", logFields...)
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get scene", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("failed to get scene %s: %w", sceneID, err)
	}

	var breakdowns []models.Breakdown
	if err := pgxscan.Select(ctx, r.db, &breakdowns, listBreakdownsBySceneQuery, sceneID); err != nil {
		r.logger.Error("Failed to list breakdowns", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("failed to list breakdowns for scene %s: %w", sceneID, err)
	}
	for i := range breakdowns {
		breakdowns[i].Normalize()
	}

	return models.NewSceneDetail(scene, breakdowns), nil
}

// Delete удаляет сцену. Разборы удаляет ON DELETE CASCADE.
func (r *pgSceneRepository) Delete(ctx context.Context, sceneID, userID uuid.UUID) error {
	logFields := []zap.Field{zap.String("sceneID", sceneID.String()), zap.String("userID", userID.String())}

	tag, err := r.db.Exec(ctx, deleteSceneQuery, sceneID, userID)
	if err != nil {
		r.logger.Error("Failed to delete scene", append(logFields, zap.Error(err))...)
		return fmt.Errorf("failed to delete scene %s: %w", sceneID, err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Warn("Scene to delete not found", logFields...)
		return models.ErrNotFound
	}

	r.logger.Info("Scene deleted", logFields...)
	return nil
}
