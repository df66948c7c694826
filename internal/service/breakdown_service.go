package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"scenebreak/internal/interfaces"
	"scenebreak/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AnonymousRequester - метка для анализа без аутентификации.
const AnonymousRequester = "anonymous"

// Requester - автор запроса на анализ.
// Verified выставляется только для id из проверенного токена: лишь такие id попадают в метрики.
type Requester struct {
	ID       string
	Verified bool
}

// VerifiedRequester - автор запроса с проверенным токеном.
func VerifiedRequester(userID uuid.UUID) Requester {
	return Requester{ID: userID.String(), Verified: true}
}

// MetricLabel возвращает значение метки user_id. Непроверенные id сводятся к AnonymousRequester.
func (r Requester) MetricLabel() string {
	if r.Verified && r.ID != "" {
		return r.ID
	}
	return AnonymousRequester
}

func (r Requester) logID() string {
	if r.ID == "" {
		return AnonymousRequester
	}
	return r.ID
}

// SaveSceneInput - данные для сохранения сцены.
// Если Breakdown пуст, сцена анализируется заново перед сохранением.
type SaveSceneInput struct {
	Title       string
	Description string
	SceneText   string
	Breakdown   json.RawMessage
}

// BreakdownService - конвейер анализа сцен и работа с сохраненными разборами.
type BreakdownService interface {
	// Analyze строит разбор без сохранения. requester используется только для логов и метрик.
	Analyze(ctx context.Context, requester Requester, sceneText string) (*models.BreakdownContent, error)
	// SaveScene сохраняет сцену и разбор атомарно.
	SaveScene(ctx context.Context, userID uuid.UUID, input SaveSceneInput) (*models.SceneDetail, error)
	// Reanalyze строит новый разбор для сохраненной сцены и добавляет его в историю разборов.
	Reanalyze(ctx context.Context, userID, sceneID uuid.UUID) (*models.Breakdown, error)
	ListHistory(ctx context.Context, userID uuid.UUID) ([]models.SceneHistoryItem, error)
	GetScene(ctx context.Context, userID, sceneID uuid.UUID) (*models.SceneDetail, error)
	DeleteScene(ctx context.Context, userID, sceneID uuid.UUID) error
}

type breakdownServiceImpl struct {
	ai        AIClient
	repo      interfaces.SceneRepository
	cache     interfaces.HistoryCache
	publisher interfaces.SceneEventPublisher
	params    GenerationParams
	logger    *zap.Logger
}

// NewBreakdownService создает сервис. ai может быть nil: тогда анализ возвращает models.ErrAIClientNotConfigured.
func NewBreakdownService(
	ai AIClient,
	repo interfaces.SceneRepository,
	cache interfaces.HistoryCache,
	publisher interfaces.SceneEventPublisher,
	params GenerationParams,
	logger *zap.Logger,
) BreakdownService {
	return &breakdownServiceImpl{
		ai:        ai,
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		params:    params,
		logger:    logger.Named("BreakdownService"),
	}
}

// DefaultGenerationParams - температура 0.2 и лимит 2000 токенов.
func DefaultGenerationParams(temperature float64, maxTokens int) GenerationParams {
	return GenerationParams{Temperature: &temperature, MaxTokens: &maxTokens}
}

func (s *breakdownServiceImpl) Analyze(ctx context.Context, requester Requester, sceneText string) (*models.BreakdownContent, error) {
	if err := ValidateSceneText(sceneText); err != nil {
		return nil, err
	}
	if s.ai == nil {
		return nil, models.ErrAIClientNotConfigured
	}
	log := s.logger.With(
		zap.String("requester", requester.logID()),
		zap.Bool("requesterVerified", requester.Verified),
		zap.Int("sceneTextLength", len(sceneText)))

	prompt := BuildBreakdownPrompt(sceneText)
	raw, _, err := s.ai.GenerateText(ctx, requester.MetricLabel(), prompt.System, prompt.User, s.params)
	if err != nil {
		log.Error("Model invocation failed", zap.Error(err))
		return nil, err
	}

	content, err := ParseBreakdown(raw)
	if err != nil {
		breakdownParseFailures.WithLabelValues(parseFailureReason(err)).Inc()
		log.Warn("Failed to parse model response", zap.Error(err), zap.Int("rawLength", len(raw)))
		return nil, err
	}

	log.Info("Scene analyzed",
		zap.Int("characters", len(content.Characters)),
		zap.Int("locations", len(content.Locations)),
		zap.Int("themes", len(content.Themes)))
	return &content, nil
}

func (s *breakdownServiceImpl) SaveScene(ctx context.Context, userID uuid.UUID, input SaveSceneInput) (*models.SceneDetail, error) {
	if userID == uuid.Nil {
		return nil, models.ErrUnauthorized
	}
	if err := ValidateSceneText(input.SceneText); err != nil {
		return nil, err
	}

	var content models.BreakdownContent
	if hasBreakdown(input.Breakdown) {
		decoded, err := DecodeBreakdown(input.Breakdown)
		if err != nil {
			return nil, fmt.Errorf("%w: breakdown: %w", models.ErrInvalidInput, err)
		}
		content = decoded
	} else {
		analyzed, err := s.Analyze(ctx, VerifiedRequester(userID), input.SceneText)
		if err != nil {
			return nil, err
		}
		content = *analyzed
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = models.DefaultSceneTitle
	}
	scene := &models.Scene{
		UserID:      userID,
		Title:       title,
		Description: input.Description,
		SceneText:   input.SceneText,
	}

	detail, err := s.repo.CreateWithBreakdown(ctx, scene, content)
	if err != nil {
		scenesSavedTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	scenesSavedTotal.WithLabelValues("success").Inc()

	s.afterWrite(ctx, models.NewSceneEvent(models.SceneEventSaved, detail.ID, userID), detail.Breakdown)
	return detail, nil
}

func (s *breakdownServiceImpl) Reanalyze(ctx context.Context, userID, sceneID uuid.UUID) (*models.Breakdown, error) {
	if userID == uuid.Nil {
		return nil, models.ErrUnauthorized
	}
	scene, err := s.repo.GetByID(ctx, sceneID, userID)
	if err != nil {
		return nil, err
	}

	content, err := s.Analyze(ctx, VerifiedRequester(userID), scene.SceneText)
	if err != nil {
		return nil, err
	}

	breakdown, err := s.repo.AddBreakdown(ctx, sceneID, userID, *content)
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, models.NewSceneEvent(models.SceneEventBreakdownAdded, sceneID, userID), breakdown)
	return breakdown, nil
}

func (s *breakdownServiceImpl) ListHistory(ctx context.Context, userID uuid.UUID) ([]models.SceneHistoryItem, error) {
	if userID == uuid.Nil {
		return nil, models.ErrUnauthorized
	}
	log := s.logger.With(zap.String("userID", userID.String()))

	// Поколение читается до запроса к БД: если между чтением и Set прошло удаление
	// или сохранение, кэш отбросит устаревший список.
	items, generation, hit, cacheErr := s.cache.Get(ctx, userID)
	if cacheErr != nil {
		log.Warn("History cache read failed, falling back to database", zap.Error(cacheErr))
	} else if hit {
		return items, nil
	}

	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cacheErr == nil {
		if err := s.cache.Set(ctx, userID, generation, items); err != nil {
			log.Warn("Failed to cache history", zap.Error(err))
		}
	}
	return items, nil
}

func (s *breakdownServiceImpl) GetScene(ctx context.Context, userID, sceneID uuid.UUID) (*models.SceneDetail, error) {
	if userID == uuid.Nil {
		return nil, models.ErrUnauthorized
	}
	return s.repo.GetByID(ctx, sceneID, userID)
}

func (s *breakdownServiceImpl) DeleteScene(ctx context.Context, userID, sceneID uuid.UUID) error {
	if userID == uuid.Nil {
		return models.ErrUnauthorized
	}
	if err := s.repo.Delete(ctx, sceneID, userID); err != nil {
		return err
	}
	s.afterWrite(ctx, models.NewSceneEvent(models.SceneEventDeleted, sceneID, userID), nil)
	return nil
}

// afterWrite сбрасывает кэш истории и публикует событие.
// Ошибки только логируются: запись в БД уже зафиксирована.
func (s *breakdownServiceImpl) afterWrite(ctx context.Context, event models.SceneEvent, breakdown *models.Breakdown) {
	log := s.logger.With(zap.String("sceneID", event.SceneID.String()), zap.String("event", string(event.Type)))

	if err := s.cache.Invalidate(ctx, event.UserID); err != nil {
		log.Warn("Failed to invalidate history cache", zap.Error(err))
	}
	if breakdown != nil {
		id := breakdown.ID
		event.BreakdownID = &id
	}
	if err := s.publisher.PublishSceneEvent(ctx, event); err != nil {
		log.Warn("Failed to publish scene event", zap.Error(err))
	}
}

func hasBreakdown(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed != "" && trimmed != "null"
}

func parseFailureReason(err error) string {
	switch {
	case errors.Is(err, models.ErrNoJSONObject):
		return "no_json"
	case errors.Is(err, models.ErrSchemaViolation):
		return "schema"
	default:
		return "invalid_json"
	}
}
