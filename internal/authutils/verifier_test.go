package authutils

import (
	"context"
	"testing"
	"time"

	"scenebreak/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-jwt-secret"

func signToken(t *testing.T, method jwt.SigningMethod, secret string, claims models.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestNewJWTVerifier_EmptySecret(t *testing.T) {
	_, err := NewJWTVerifier("", zap.NewNop())
	assert.Error(t, err)
}

func TestVerifyToken(t *testing.T) {
	verifier, err := NewJWTVerifier(testSecret, nil)
	require.NoError(t, err)
	userID := uuid.New()
	ctx := context.Background()

	valid := models.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	t.Run("valid token", func(t *testing.T) {
		claims, err := verifier.VerifyToken(ctx, signToken(t, jwt.SigningMethodHS256, testSecret, valid))
		require.NoError(t, err)
		assert.Equal(t, userID, claims.UserID)
	})

	t.Run("expired token", func(t *testing.T) {
		expired := valid
		expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		_, err := verifier.VerifyToken(ctx, signToken(t, jwt.SigningMethodHS256, testSecret, expired))
		assert.ErrorIs(t, err, models.ErrTokenExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := verifier.VerifyToken(ctx, signToken(t, jwt.SigningMethodHS256, "other-secret", valid))
		assert.ErrorIs(t, err, models.ErrTokenInvalid)
	})

	t.Run("malformed token", func(t *testing.T) {
		_, err := verifier.VerifyToken(ctx, "not-a-jwt")
		assert.ErrorIs(t, err, models.ErrTokenMalformed)
	})

	t.Run("missing user id", func(t *testing.T) {
		noUser := valid
		noUser.UserID = uuid.Nil
		_, err := verifier.VerifyToken(ctx, signToken(t, jwt.SigningMethodHS256, testSecret, noUser))
		assert.ErrorIs(t, err, models.ErrTokenInvalid)
	})
}

func TestTokenSnippet(t *testing.T) {
	assert.Equal(t, "short", tokenSnippet("short"))
	assert.Equal(t, "abcdefghijklmno...", tokenSnippet("abcdefghijklmnopqrstuvwxyz"))
}
