package handler

import (
	"errors"
	"net/http"
	"unicode/utf8"

	"scenebreak/internal/models"

	"github.com/gin-gonic/gin"
)

// debugExcerptLimit ограничивает размер сырого ответа модели в поле debug.
const debugExcerptLimit = 500

// handleServiceError преобразует ошибки сервиса в HTTP ответы.
func handleServiceError(c *gin.Context, err error) {
	var statusCode int
	var errResp models.ErrorResponse

	var parseErr *models.ParseError
	var schemaErr *models.SchemaError

	switch {
	case errors.Is(err, models.ErrSceneTextRequired):
		statusCode = http.StatusBadRequest
		errResp = models.ErrorResponse{Error: models.ErrSceneTextRequired.Error()}
	case errors.Is(err, models.ErrInvalidInput):
		statusCode = http.StatusBadRequest
		errResp = models.ErrorResponse{Error: err.Error()}
	case errors.Is(err, models.ErrTokenExpired):
		statusCode = http.StatusUnauthorized
		errResp = models.ErrorResponse{Error: "Token has expired"}
	case isAuthError(err):
		statusCode = http.StatusUnauthorized
		errResp = models.ErrorResponse{Error: "Unauthorized"}
	case errors.Is(err, models.ErrNotFound):
		statusCode = http.StatusNotFound
		errResp = models.ErrorResponse{Error: "Scene not found"}
	case errors.Is(err, models.ErrAIClientNotConfigured):
		statusCode = http.StatusServiceUnavailable
		errResp = models.ErrorResponse{Error: err.Error()}
	case errors.As(err, &parseErr):
		statusCode = http.StatusInternalServerError
		errResp = models.ErrorResponse{Error: models.ErrParse.Error(), Debug: excerpt(parseErr.Raw)}
		if errors.As(err, &schemaErr) {
			errResp.Debug = schemaErr.Error()
		}
	case errors.Is(err, models.ErrAIGenerationFailed):
		statusCode = http.StatusInternalServerError
		errResp = models.ErrorResponse{Error: "Breakdown generation failed", Debug: err.Error()}
	case errors.Is(err, models.ErrPersistence):
		statusCode = http.StatusInternalServerError
		errResp = models.ErrorResponse{Error: models.ErrPersistence.Error(), Debug: err.Error()}
	default:
		statusCode = http.StatusInternalServerError
		errResp = models.ErrorResponse{Error: "Internal server error"}
	}

	if statusCode >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(statusCode, errResp)
}

// excerpt обрезает raw до debugExcerptLimit байт, не разрезая руну.
func excerpt(raw string) string {
	if len(raw) <= debugExcerptLimit {
		return raw
	}
	cut := debugExcerptLimit
	for cut > 0 && !utf8.RuneStart(raw[cut]) {
		cut--
	}
	return raw[:cut] + "..."
}
