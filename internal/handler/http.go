package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"scenebreak/internal/models"
	"scenebreak/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SceneHandler обрабатывает HTTP запросы анализа и истории сцен.
type SceneHandler struct {
	service  service.BreakdownService
	verifier TokenVerifier
	logger   *zap.Logger
}

// NewSceneHandler создает новый SceneHandler.
func NewSceneHandler(s service.BreakdownService, verifier TokenVerifier, logger *zap.Logger) *SceneHandler {
	return &SceneHandler{
		service:  s,
		verifier: verifier,
		logger:   logger.Named("SceneHandler"),
	}
}

// RegisterRoutes регистрирует маршруты сервиса.
func (h *SceneHandler) RegisterRoutes(router gin.IRouter) {
	router.POST("/breakdown", OptionalAuth(h.verifier, h.logger), h.analyzeScene)

	scenes := router.Group("/scenes", RequireAuth(h.verifier, h.logger))
	{
		scenes.POST("", h.saveScene)
		scenes.GET("", h.listScenes)
		scenes.GET("/:id", h.getScene)
		scenes.DELETE("/:id", h.deleteScene)
		scenes.POST("/:id/breakdowns", h.reanalyzeScene)
	}
}

type analyzeSceneRequest struct {
	SceneText string `json:"sceneText"`
	UserID    string `json:"userId"`
}

type saveSceneRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	SceneText   string          `json:"sceneText"`
	Breakdown   json.RawMessage `json:"breakdown"`
}

func (h *SceneHandler) analyzeScene(c *gin.Context) {
	var req analyzeSceneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Пустое тело - это отсутствующий sceneText
		if errors.Is(err, io.EOF) {
			handleServiceError(c, models.ErrSceneTextRequired)
			return
		}
		h.logger.Warn("Invalid analyze request body", zap.Error(err))
		handleServiceError(c, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return
	}

	// userId из тела не проверен и в метрики не попадает
	requester := service.Requester{ID: service.AnonymousRequester}
	if userID, ok := userIDFromContext(c); ok {
		requester = service.VerifiedRequester(userID)
	} else if trimmed := strings.TrimSpace(req.UserID); trimmed != "" {
		requester.ID = trimmed
	}

	content, err := h.service.Analyze(c.Request.Context(), requester, req.SceneText)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, content)
}

func (h *SceneHandler) saveScene(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}

	var req saveSceneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid save request body", zap.String("userID", userID.String()), zap.Error(err))
		handleServiceError(c, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return
	}

	detail, err := h.service.SaveScene(c.Request.Context(), userID, service.SaveSceneInput{
		Title:       req.Title,
		Description: req.Description,
		SceneText:   req.SceneText,
		Breakdown:   req.Breakdown,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, detail)
}

func (h *SceneHandler) listScenes(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}

	items, err := h.service.ListHistory(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if items == nil {
		items = []models.SceneHistoryItem{}
	}
	c.JSON(http.StatusOK, items)
}

func (h *SceneHandler) getScene(c *gin.Context) {
	userID, sceneID, ok := h.sceneParams(c)
	if !ok {
		return
	}

	detail, err := h.service.GetScene(c.Request.Context(), userID, sceneID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *SceneHandler) deleteScene(c *gin.Context) {
	userID, sceneID, ok := h.sceneParams(c)
	if !ok {
		return
	}

	if err := h.service.DeleteScene(c.Request.Context(), userID, sceneID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SceneHandler) reanalyzeScene(c *gin.Context) {
	userID, sceneID, ok := h.sceneParams(c)
	if !ok {
		return
	}

	breakdown, err := h.service.Reanalyze(c.Request.Context(), userID, sceneID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, breakdown)
}

// sceneParams достает userID из контекста и id сцены из пути. При ошибке ответ уже записан.
func (h *SceneHandler) sceneParams(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return uuid.Nil, uuid.Nil, false
	}
	sceneID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.logger.Warn("Invalid scene id", zap.String("id", c.Param("id")))
		handleServiceError(c, fmt.Errorf("%w: scene id must be a UUID", models.ErrInvalidInput))
		return uuid.Nil, uuid.Nil, false
	}
	return userID, sceneID, true
}

// HealthCheck отвечает на GET и HEAD /health.
func HealthCheck(c *gin.Context) {
	if c.Request.Method == http.MethodHead {
		c.Status(http.StatusOK)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
