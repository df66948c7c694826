package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"scenebreak/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const userIDContextKey = "userID"

// TokenVerifier проверяет строку токена и возвращает claims.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, tokenString string) (*models.Claims, error)
}

// RequireAuth отклоняет запросы без валидного Bearer токена.
func RequireAuth(verifier TokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := authenticate(c, verifier)
		if err != nil {
			logger.Warn("Authentication failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
			handleServiceError(c, err)
			return
		}
		c.Set(userIDContextKey, userID)
		c.Next()
	}
}

// OptionalAuth кладет userID в контекст, если токен есть и валиден. Иначе запрос проходит анонимно.
func OptionalAuth(verifier TokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") != "" {
			userID, err := authenticate(c, verifier)
			if err != nil {
				logger.Debug("Ignoring invalid optional token", zap.Error(err))
			} else {
				c.Set(userIDContextKey, userID)
			}
		}
		c.Next()
	}
}

func authenticate(c *gin.Context, verifier TokenVerifier) (uuid.UUID, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return uuid.Nil, models.ErrUnauthorized
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return uuid.Nil, models.ErrTokenMalformed
	}
	claims, err := verifier.VerifyToken(c.Request.Context(), parts[1])
	if err != nil {
		return uuid.Nil, err
	}
	return claims.UserID, nil
}

func userIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	value, ok := c.Get(userIDContextKey)
	if !ok {
		return uuid.Nil, false
	}
	userID, ok := value.(uuid.UUID)
	return userID, ok && userID != uuid.Nil
}

// GinZapLogger логирует запросы через zap. /health и /metrics пропускаются.
func GinZapLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/health" || path == "/metrics" {
			c.Next()
			return
		}

		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)

		start := time.Now()
		c.Next()

		if rawQuery := c.Request.URL.RawQuery; rawQuery != "" {
			path = path + "?" + rawQuery
		}
		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
			zap.String("user_agent", c.Request.UserAgent()),
			zap.String("request_id", requestID),
		}
		if userID, ok := userIDFromContext(c); ok {
			fields = append(fields, zap.String("userID", userID.String()))
		}

		if len(c.Errors) > 0 {
			for _, ginErr := range c.Errors.ByType(gin.ErrorTypeAny) {
				logger.Error("Request error", append(fields, zap.Error(ginErr.Err))...)
			}
			return
		}
		status := c.Writer.Status()
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("Server error", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("Client error", fields...)
		default:
			logger.Info("Request completed", fields...)
		}
	}
}

// isAuthError сообщает, относится ли ошибка к аутентификации.
func isAuthError(err error) bool {
	return errors.Is(err, models.ErrUnauthorized) ||
		errors.Is(err, models.ErrTokenInvalid) ||
		errors.Is(err, models.ErrTokenMalformed) ||
		errors.Is(err, models.ErrTokenExpired)
}
