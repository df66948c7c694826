package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"scenebreak/internal/authutils"
	"scenebreak/internal/mocks"
	"scenebreak/internal/models"
	"scenebreak/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testJWTSecret = "handler-test-secret"

func setupRouter(t *testing.T) (*gin.Engine, *mocks.BreakdownService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := new(mocks.BreakdownService)
	t.Cleanup(func() { svc.AssertExpectations(t) })

	verifier, err := authutils.NewJWTVerifier(testJWTSecret, zap.NewNop())
	require.NoError(t, err)

	router := gin.New()
	router.Use(GinZapLogger(zap.NewNop()))
	router.GET("/health", HealthCheck)
	router.HEAD("/health", HealthCheck)
	NewSceneHandler(svc, verifier, zap.NewNop()).RegisterRoutes(router)
	return router, svc
}

func bearer(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, models.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func doRequest(router http.Handler, method, path, body, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestAnalyzeScene_Success(t *testing.T) {
	router, svc := setupRouter(t)
	content := &models.BreakdownContent{
		Characters: []string{"Maria"},
		Locations:  []string{"Kitchen"},
		Themes:     []string{"grief"},
		Tone:       "somber",
	}
	svc.On("Analyze", mock.Anything, service.Requester{ID: "anonymous"}, "Maria lights a candle.").Return(content, nil).Once()

	rec := doRequest(router, http.MethodPost, "/breakdown", `{"sceneText":"Maria lights a candle."}`, "")

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []any{"Maria"}, got["characters"])
	assert.Equal(t, "somber", got["tone"])
	for _, key := range []string{"locations", "themes", "structure", "technicalNotes", "visualElements", "emotionalArc"} {
		assert.Contains(t, got, key)
	}
}

func TestAnalyzeScene_RequesterResolution(t *testing.T) {
	router, svc := setupRouter(t)
	userID := uuid.New()
	content := &models.BreakdownContent{}

	svc.On("Analyze", mock.Anything, service.VerifiedRequester(userID), "scene").Return(content, nil).Once()
	rec := doRequest(router, http.MethodPost, "/breakdown", `{"sceneText":"scene","userId":"body-user"}`, bearer(t, userID))
	assert.Equal(t, http.StatusOK, rec.Code)

	svc.On("Analyze", mock.Anything, service.Requester{ID: "body-user"}, "scene").Return(content, nil).Once()
	rec = doRequest(router, http.MethodPost, "/breakdown", `{"sceneText":"scene","userId":"body-user"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code, "body userId is passed on unverified")

	svc.On("Analyze", mock.Anything, service.Requester{ID: "anonymous"}, "scene").Return(content, nil).Once()
	rec = doRequest(router, http.MethodPost, "/breakdown", `{"sceneText":"scene"}`, "Bearer broken")
	assert.Equal(t, http.StatusOK, rec.Code, "invalid optional token falls back to anonymous")
}

func TestAnalyzeScene_EmptySceneText(t *testing.T) {
	router, svc := setupRouter(t)
	svc.On("Analyze", mock.Anything, service.Requester{ID: "anonymous"}, "").Return(nil, models.ErrSceneTextRequired).Once()

	rec := doRequest(router, http.MethodPost, "/breakdown", `{"sceneText":""}`, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Scene text is required", decodeError(t, rec).Error)
}

func TestAnalyzeScene_EmptyBody(t *testing.T) {
	router, svc := setupRouter(t)

	rec := doRequest(router, http.MethodPost, "/breakdown", "", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Scene text is required", decodeError(t, rec).Error)
	svc.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything, mock.Anything)
}

func TestAnalyzeScene_ModelNotConfigured(t *testing.T) {
	router, svc := setupRouter(t)
	svc.On("Analyze", mock.Anything, mock.Anything, "scene").Return(nil, models.ErrAIClientNotConfigured).Once()

	rec := doRequest(router, http.MethodPost, "/breakdown", `{"sceneText":"scene"}`, "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotEmpty(t, decodeError(t, rec).Error)
}

func TestAnalyzeScene_ParseFailureCarriesDebug(t *testing.T) {
	router, svc := setupRouter(t)
	raw := "I'm sorry, I cannot analyze this."
	svc.On("Analyze", mock.Anything, mock.Anything, "scene").
		Return(nil, &models.ParseError{Raw: raw, Err: models.ErrNoJSONObject}).Once()

	rec := doRequest(router, http.MethodPost, "/breakdown", `{"sceneText":"scene"}`, "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "invalid JSON from AI", resp.Error)
	assert.Equal(t, raw, resp.Debug)
}

func TestAnalyzeScene_ModelFailure(t *testing.T) {
	router, svc := setupRouter(t)
	svc.On("Analyze", mock.Anything, mock.Anything, "scene").
		Return(nil, fmt.Errorf("%w: connection refused", models.ErrAIGenerationFailed)).Once()

	rec := doRequest(router, http.MethodPost, "/breakdown", `{"sceneText":"scene"}`, "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decodeError(t, rec).Debug, "connection refused")
}

func TestAnalyzeScene_MalformedBody(t *testing.T) {
	router, _ := setupRouter(t)

	rec := doRequest(router, http.MethodPost, "/breakdown", `{"sceneText":`, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaveScene_RequiresAuth(t *testing.T) {
	router, _ := setupRouter(t)

	rec := doRequest(router, http.MethodPost, "/scenes", `{"sceneText":"scene"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(router, http.MethodPost, "/scenes", `{"sceneText":"scene"}`, "Token abc")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSaveScene_Created(t *testing.T) {
	router, svc := setupRouter(t)
	userID := uuid.New()
	sceneID := uuid.New()
	detail := models.NewSceneDetail(
		models.Scene{ID: sceneID, UserID: userID, Title: "Pilot", SceneText: "scene"},
		[]models.Breakdown{{ID: uuid.New(), SceneID: sceneID, UserID: userID, BreakdownContent: models.BreakdownContent{Tone: "dark"}}},
	)
	svc.On("SaveScene", mock.Anything, userID, mock.MatchedBy(func(in service.SaveSceneInput) bool {
		return in.Title == "Pilot" && in.SceneText == "scene" && strings.Contains(string(in.Breakdown), `"tone":"dark"`)
	})).Return(detail, nil).Once()

	rec := doRequest(router, http.MethodPost, "/scenes",
		`{"title":"Pilot","sceneText":"scene","breakdown":{"tone":"dark"}}`, bearer(t, userID))

	require.Equal(t, http.StatusCreated, rec.Code)
	var got models.SceneDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, sceneID, got.ID)
	require.NotNil(t, got.Breakdown)
	assert.Equal(t, "dark", got.Breakdown.Tone)
}

func TestSaveScene_PersistenceFailure(t *testing.T) {
	router, svc := setupRouter(t)
	userID := uuid.New()
	svc.On("SaveScene", mock.Anything, userID, mock.Anything).
		Return(nil, fmt.Errorf("%w: insert breakdown: boom", models.ErrPersistence)).Once()

	rec := doRequest(router, http.MethodPost, "/scenes", `{"sceneText":"scene"}`, bearer(t, userID))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, models.ErrPersistence.Error(), decodeError(t, rec).Error)
}

func TestSaveScene_InvalidBreakdown(t *testing.T) {
	router, svc := setupRouter(t)
	userID := uuid.New()
	svc.On("SaveScene", mock.Anything, userID, mock.Anything).
		Return(nil, fmt.Errorf("%w: breakdown: %w", models.ErrInvalidInput, &models.SchemaError{
			Violations: []models.FieldViolation{{Field: "tone", Expected: "string", Got: "number"}},
		})).Once()

	rec := doRequest(router, http.MethodPost, "/scenes", `{"sceneText":"scene","breakdown":{"tone":1}}`, bearer(t, userID))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Error, "tone")
}

func TestListScenes(t *testing.T) {
	router, svc := setupRouter(t)
	userID := uuid.New()

	svc.On("ListHistory", mock.Anything, userID).Return(nil, nil).Once()
	rec := doRequest(router, http.MethodGet, "/scenes", "", bearer(t, userID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	items := []models.SceneHistoryItem{
		{Scene: models.Scene{ID: uuid.New(), UserID: userID, Title: "Newer"}},
		{Scene: models.Scene{ID: uuid.New(), UserID: userID, Title: "Older"}},
	}
	svc.On("ListHistory", mock.Anything, userID).Return(items, nil).Once()
	rec = doRequest(router, http.MethodGet, "/scenes", "", bearer(t, userID))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []models.SceneHistoryItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Newer", got[0].Title)
}

func TestGetScene(t *testing.T) {
	router, svc := setupRouter(t)
	userID, sceneID := uuid.New(), uuid.New()

	svc.On("GetScene", mock.Anything, userID, sceneID).Return(models.NewSceneDetail(models.Scene{ID: sceneID}, nil), nil).Once()
	rec := doRequest(router, http.MethodGet, "/scenes/"+sceneID.String(), "", bearer(t, userID))
	assert.Equal(t, http.StatusOK, rec.Code)

	missing := uuid.New()
	svc.On("GetScene", mock.Anything, userID, missing).Return(nil, models.ErrNotFound).Once()
	rec = doRequest(router, http.MethodGet, "/scenes/"+missing.String(), "", bearer(t, userID))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(router, http.MethodGet, "/scenes/not-a-uuid", "", bearer(t, userID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteScene(t *testing.T) {
	router, svc := setupRouter(t)
	userID, sceneID := uuid.New(), uuid.New()

	svc.On("DeleteScene", mock.Anything, userID, sceneID).Return(nil).Once()
	rec := doRequest(router, http.MethodDelete, "/scenes/"+sceneID.String(), "", bearer(t, userID))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.Bytes())

	svc.On("DeleteScene", mock.Anything, userID, sceneID).Return(models.ErrNotFound).Once()
	rec = doRequest(router, http.MethodDelete, "/scenes/"+sceneID.String(), "", bearer(t, userID))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReanalyzeScene(t *testing.T) {
	router, svc := setupRouter(t)
	userID, sceneID := uuid.New(), uuid.New()
	breakdown := &models.Breakdown{ID: uuid.New(), SceneID: sceneID, UserID: userID}

	svc.On("Reanalyze", mock.Anything, userID, sceneID).Return(breakdown, nil).Once()
	rec := doRequest(router, http.MethodPost, "/scenes/"+sceneID.String()+"/breakdowns", "", bearer(t, userID))

	require.Equal(t, http.StatusCreated, rec.Code)
	var got models.Breakdown
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, breakdown.ID, got.ID)
}

func TestHealthCheck(t *testing.T) {
	router, _ := setupRouter(t)

	rec := doRequest(router, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = doRequest(router, http.MethodHead, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGinZapLogger_SetsRequestID(t *testing.T) {
	router, svc := setupRouter(t)
	svc.On("Analyze", mock.Anything, mock.Anything, "scene").Return(&models.BreakdownContent{}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/breakdown", bytes.NewBufferString(`{"sceneText":"scene"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}

func TestAnalyzeScene_WrongTypedFieldIsServerError(t *testing.T) {
	router, svc := setupRouter(t)
	svc.On("Analyze", mock.Anything, mock.Anything, "scene").
		Return(nil, &models.ParseError{
			Raw: `{"tone":["dark"]}`,
			Err: &models.SchemaError{Violations: []models.FieldViolation{{Field: "tone", Expected: "string", Got: "array"}}},
		}).Once()

	rec := doRequest(router, http.MethodPost, "/breakdown", `{"sceneText":"scene"}`, "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "invalid JSON from AI", resp.Error)
	assert.Contains(t, resp.Debug, "tone: expected string, got array")
}

func TestExcerpt_KeepsRuneBoundary(t *testing.T) {
	short := "короткий ответ"
	assert.Equal(t, short, excerpt(short))

	// "ж" занимает байты 499-500 и не помещается в лимит целиком
	raw := strings.Repeat("a", debugExcerptLimit-1) + "ж" + "tail"
	got := excerpt(raw)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", debugExcerptLimit-1)+"...", got)

	raw = strings.Repeat("ж", debugExcerptLimit)
	got = excerpt(raw)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("ж", debugExcerptLimit/2)+"...", got)
}
