package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"scenebreak/internal/database"
	"scenebreak/internal/interfaces"
	"scenebreak/internal/models"
	"scenebreak/internal/repository"
	"scenebreak/pkg/migration"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// RepositoryIntegrationSuite поднимает PostgreSQL и Redis в контейнерах.
type RepositoryIntegrationSuite struct {
	suite.Suite
	ctx         context.Context
	pgContainer *postgres.PostgresContainer
	rdContainer *tcredis.RedisContainer
	pool        *pgxpool.Pool
	redisClient *redis.Client
	repo        interfaces.SceneRepository
	cache       interfaces.HistoryCache
	logger      *zap.Logger
}

func (s *RepositoryIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = zap.NewNop()
	var err error

	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("scenebreak_test"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
	)
	s.Require().NoError(err, "Failed to start postgres container")

	pgConnStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.pool, err = pgxpool.New(s.ctx, pgConnStr)
	s.Require().NoError(err)

	migrator := migration.NewMigrator(migration.Config{
		MigrationsPath: database.MigrationsPath,
		MigrationsFS:   database.MigrationsFS,
	}, s.pool, s.logger)
	s.Require().NoError(migrator.Up(), "Failed to run migrations")

	version, dirty, err := migrator.Version()
	s.Require().NoError(err)
	s.Require().False(dirty)
	s.Require().EqualValues(2, version)

	s.rdContainer, err = tcredis.Run(s.ctx,
		"docker.io/redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("* Ready to accept connections").
				WithOccurrence(1).
				WithStartupTimeout(1*time.Minute),
		),
	)
	s.Require().NoError(err, "Failed to start redis container")

	redisHost, err := s.rdContainer.Host(s.ctx)
	s.Require().NoError(err)
	redisPort, err := s.rdContainer.MappedPort(s.ctx, "6379/tcp")
	s.Require().NoError(err)
	s.redisClient = redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port())})
	s.Require().NoError(s.redisClient.Ping(s.ctx).Err())

	s.repo = repository.NewPgSceneRepository(s.pool, s.logger)
	s.cache = repository.NewRedisHistoryCache(s.redisClient, time.Minute, s.logger)
}

func (s *RepositoryIntegrationSuite) TearDownSuite() {
	if s.redisClient != nil {
		_ = s.redisClient.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	if s.rdContainer != nil {
		_ = s.rdContainer.Terminate(s.ctx)
	}
	if s.pgContainer != nil {
		_ = s.pgContainer.Terminate(s.ctx)
	}
}

func (s *RepositoryIntegrationSuite) SetupTest() {
	_, err := s.pool.Exec(s.ctx, "TRUNCATE scenes CASCADE")
	s.Require().NoError(err)
	s.Require().NoError(s.redisClient.FlushDB(s.ctx).Err())
}

func TestRepositoryIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	suite.Run(t, new(RepositoryIntegrationSuite))
}

func sampleContent(tone string) models.BreakdownContent {
	return models.BreakdownContent{
		Characters:     []string{"Maria", "Jon"},
		Locations:      []string{"Kitchen"},
		Themes:         []string{"grief"},
		Tone:           tone,
		Structure:      "single beat",
		TechnicalNotes: "handheld",
		VisualElements: "candle light",
		EmotionalArc:   "despair to resolve",
	}
}

func (s *RepositoryIntegrationSuite) countRows(table string, sceneID uuid.UUID) int {
	column := "id"
	if table == "breakdowns" {
		column = "scene_id"
	}
	var n int
	err := s.pool.QueryRow(s.ctx, fmt.Sprintf("SELECT count(*) FROM %s WHERE %s = $1", table, column), sceneID).Scan(&n)
	s.Require().NoError(err)
	return n
}

func (s *RepositoryIntegrationSuite) TestCreateWithBreakdown_RoundTrip() {
	userID := uuid.New()
	scene := &models.Scene{UserID: userID, Title: "Pilot", Description: "cold open", SceneText: "INT. KITCHEN - NIGHT"}

	detail, err := s.repo.CreateWithBreakdown(s.ctx, scene, sampleContent("somber"))
	s.Require().NoError(err)
	s.Require().NotNil(detail.Breakdown)
	s.NotEqual(uuid.Nil, detail.ID)
	s.False(detail.CreatedAt.IsZero())
	s.Equal(detail.ID, detail.Breakdown.SceneID)

	got, err := s.repo.GetByID(s.ctx, detail.ID, userID)
	s.Require().NoError(err)
	s.Equal("Pilot", got.Title)
	s.Equal("cold open", got.Description)
	s.Equal("INT. KITCHEN - NIGHT", got.SceneText)
	s.Require().Len(got.Breakdowns, 1)
	s.Equal(sampleContent("somber"), got.Breakdowns[0].BreakdownContent)
	s.Equal(detail.Breakdown.ID, got.Breakdown.ID)
}

func (s *RepositoryIntegrationSuite) TestCreateWithBreakdown_DefaultsAndEmptyLists() {
	userID := uuid.New()
	scene := &models.Scene{UserID: userID, SceneText: "EXT. ROOF - DAY"}

	detail, err := s.repo.CreateWithBreakdown(s.ctx, scene, models.BreakdownContent{})
	s.Require().NoError(err)
	s.Equal(models.DefaultSceneTitle, detail.Title)

	got, err := s.repo.GetByID(s.ctx, detail.ID, userID)
	s.Require().NoError(err)
	s.NotNil(got.Breakdowns[0].Characters)
	s.Empty(got.Breakdowns[0].Characters)
}

func (s *RepositoryIntegrationSuite) TestCreateWithBreakdown_RollsBackSceneOnBreakdownFailure() {
	userID := uuid.New()
	scene := &models.Scene{ID: uuid.New(), UserID: userID, SceneText: "INT. HALL - DAY"}

	// NUL байт в text отвергается PostgreSQL уже после вставки сцены
	_, err := s.repo.CreateWithBreakdown(s.ctx, scene, sampleContent("bad\x00tone"))
	s.Require().ErrorIs(err, models.ErrPersistence)

	s.Equal(0, s.countRows("scenes", scene.ID))
	s.Equal(0, s.countRows("breakdowns", scene.ID))
}

func (s *RepositoryIntegrationSuite) TestListByUser_NewestFirstWithLatestBreakdown() {
	userID := uuid.New()
	otherUser := uuid.New()

	first, err := s.repo.CreateWithBreakdown(s.ctx, &models.Scene{UserID: userID, Title: "First", SceneText: "one"}, sampleContent("v1"))
	s.Require().NoError(err)
	second, err := s.repo.CreateWithBreakdown(s.ctx, &models.Scene{UserID: userID, Title: "Second", SceneText: "two"}, sampleContent("calm"))
	s.Require().NoError(err)
	_, err = s.repo.CreateWithBreakdown(s.ctx, &models.Scene{UserID: otherUser, Title: "Foreign", SceneText: "three"}, sampleContent("x"))
	s.Require().NoError(err)

	_, err = s.repo.AddBreakdown(s.ctx, first.ID, userID, sampleContent("v2"))
	s.Require().NoError(err)

	items, err := s.repo.ListByUser(s.ctx, userID)
	s.Require().NoError(err)
	s.Require().Len(items, 2)
	s.Equal(second.ID, items[0].ID)
	s.Equal(first.ID, items[1].ID)
	s.Equal("v2", items[1].Breakdown.Tone, "history shows the most recent breakdown")
	s.Equal(first.ID, items[1].Breakdown.SceneID)

	detail, err := s.repo.GetByID(s.ctx, first.ID, userID)
	s.Require().NoError(err)
	s.Require().Len(detail.Breakdowns, 2)
	s.Equal("v2", detail.Breakdowns[0].Tone)
	s.Equal("v1", detail.Breakdowns[1].Tone)
	s.Equal("v2", detail.Breakdown.Tone)
}

func (s *RepositoryIntegrationSuite) TestListByUser_Empty() {
	items, err := s.repo.ListByUser(s.ctx, uuid.New())
	s.Require().NoError(err)
	s.NotNil(items)
	s.Empty(items)
}

func (s *RepositoryIntegrationSuite) TestListByUser_SkipsScenesWithoutBreakdown() {
	userID := uuid.New()
	saved, err := s.repo.CreateWithBreakdown(s.ctx, &models.Scene{UserID: userID, SceneText: "kept"}, sampleContent("a"))
	s.Require().NoError(err)

	orphanID := uuid.New()
	_, err = s.pool.Exec(s.ctx, "INSERT INTO scenes (id, user_id, scene_text) VALUES ($1, $2, $3)", orphanID, userID, "orphan")
	s.Require().NoError(err)

	items, err := s.repo.ListByUser(s.ctx, userID)
	s.Require().NoError(err)
	s.Require().Len(items, 1)
	s.Equal(saved.ID, items[0].ID)
	for _, item := range items {
		s.NotEqual(orphanID, item.ID)
	}
}

func (s *RepositoryIntegrationSuite) TestAddBreakdown_ForeignSceneNotFound() {
	owner := uuid.New()
	detail, err := s.repo.CreateWithBreakdown(s.ctx, &models.Scene{UserID: owner, SceneText: "text"}, sampleContent("a"))
	s.Require().NoError(err)

	_, err = s.repo.AddBreakdown(s.ctx, detail.ID, uuid.New(), sampleContent("b"))
	s.ErrorIs(err, models.ErrNotFound)

	_, err = s.repo.AddBreakdown(s.ctx, uuid.New(), owner, sampleContent("b"))
	s.ErrorIs(err, models.ErrNotFound)
}

func (s *RepositoryIntegrationSuite) TestGetByID_OtherUserNotFound() {
	detail, err := s.repo.CreateWithBreakdown(s.ctx, &models.Scene{UserID: uuid.New(), SceneText: "text"}, sampleContent("a"))
	s.Require().NoError(err)

	_, err = s.repo.GetByID(s.ctx, detail.ID, uuid.New())
	s.ErrorIs(err, models.ErrNotFound)
}

func (s *RepositoryIntegrationSuite) TestDelete_CascadesBreakdowns() {
	userID := uuid.New()
	detail, err := s.repo.CreateWithBreakdown(s.ctx, &models.Scene{UserID: userID, SceneText: "text"}, sampleContent("a"))
	s.Require().NoError(err)
	_, err = s.repo.AddBreakdown(s.ctx, detail.ID, userID, sampleContent("b"))
	s.Require().NoError(err)
	s.Equal(2, s.countRows("breakdowns", detail.ID))

	s.ErrorIs(s.repo.Delete(s.ctx, detail.ID, uuid.New()), models.ErrNotFound, "other users cannot delete")
	s.Require().NoError(s.repo.Delete(s.ctx, detail.ID, userID))

	s.Equal(0, s.countRows("scenes", detail.ID))
	s.Equal(0, s.countRows("breakdowns", detail.ID))
	s.ErrorIs(s.repo.Delete(s.ctx, detail.ID, userID), models.ErrNotFound)
}

func (s *RepositoryIntegrationSuite) TestHistoryCache_SetGetInvalidate() {
	userID := uuid.New()

	_, generation, hit, err := s.cache.Get(s.ctx, userID)
	s.Require().NoError(err)
	s.False(hit)
	s.Zero(generation)

	detail, err := s.repo.CreateWithBreakdown(s.ctx, &models.Scene{UserID: userID, SceneText: "text"}, sampleContent("cached"))
	s.Require().NoError(err)
	items, err := s.repo.ListByUser(s.ctx, userID)
	s.Require().NoError(err)

	s.Require().NoError(s.cache.Set(s.ctx, userID, generation, items))
	cached, _, hit, err := s.cache.Get(s.ctx, userID)
	s.Require().NoError(err)
	s.True(hit)
	s.Require().Len(cached, 1)
	s.Equal(detail.ID, cached[0].ID)
	s.Equal("cached", cached[0].Breakdown.Tone)

	s.Require().NoError(s.cache.Invalidate(s.ctx, userID))
	_, generation, hit, err = s.cache.Get(s.ctx, userID)
	s.Require().NoError(err)
	s.False(hit)
	s.EqualValues(1, generation)
}

func (s *RepositoryIntegrationSuite) TestHistoryCache_StaleSetAfterInvalidateIsDropped() {
	userID := uuid.New()
	detail, err := s.repo.CreateWithBreakdown(s.ctx, &models.Scene{UserID: userID, SceneText: "text"}, sampleContent("a"))
	s.Require().NoError(err)

	// Читатель получил поколение и список до удаления
	_, staleGeneration, hit, err := s.cache.Get(s.ctx, userID)
	s.Require().NoError(err)
	s.Require().False(hit)
	stale, err := s.repo.ListByUser(s.ctx, userID)
	s.Require().NoError(err)
	s.Require().Len(stale, 1)

	s.Require().NoError(s.repo.Delete(s.ctx, detail.ID, userID))
	s.Require().NoError(s.cache.Invalidate(s.ctx, userID))

	s.Require().NoError(s.cache.Set(s.ctx, userID, staleGeneration, stale))
	_, generation, hit, err := s.cache.Get(s.ctx, userID)
	s.Require().NoError(err)
	s.False(hit, "list loaded before the delete must not be cached")

	fresh, err := s.repo.ListByUser(s.ctx, userID)
	s.Require().NoError(err)
	s.Require().NoError(s.cache.Set(s.ctx, userID, generation, fresh))
	cached, _, hit, err := s.cache.Get(s.ctx, userID)
	s.Require().NoError(err)
	s.True(hit)
	s.Empty(cached)
}

func (s *RepositoryIntegrationSuite) TestHistoryCache_CorruptedEntryIsMiss() {
	userID := uuid.New()
	s.Require().NoError(s.redisClient.Set(s.ctx, "scene_history:"+userID.String(), "{not json", time.Minute).Err())

	_, _, hit, err := s.cache.Get(s.ctx, userID)
	s.Require().NoError(err)
	s.False(hit)

	exists, err := s.redisClient.Exists(s.ctx, "scene_history:"+userID.String()).Result()
	require.NoError(s.T(), err)
	s.Zero(exists)
}
