package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scenebreak/internal/authutils"
	"scenebreak/internal/config"
	"scenebreak/internal/database"
	"scenebreak/internal/handler"
	"scenebreak/internal/interfaces"
	"scenebreak/internal/logger"
	"scenebreak/internal/messaging"
	"scenebreak/internal/repository"
	"scenebreak/internal/service"
	"scenebreak/pkg/migration"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
)

func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger ---
	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)
	log.Info("Logger initialized", zap.String("logLevel", cfg.LogLevel), zap.String("env", cfg.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- PostgreSQL ---
	pool, err := database.Connect(ctx, database.PoolConfig{
		DSN:         cfg.GetDSN(),
		MaxConns:    cfg.DBMaxConns,
		IdleTimeout: cfg.DBIdleTimeout,
	}, log)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pool.Close()

	if cfg.DBAutoMigrate {
		migrator := migration.NewMigrator(migration.Config{
			MigrationsPath: database.MigrationsPath,
			MigrationsFS:   database.MigrationsFS,
		}, pool, log)
		if err := migrator.Up(); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	// --- Redis (опционально) ---
	historyCache := repository.NewNoopHistoryCache()
	if cfg.RedisAddr != "" {
		redisClient, err := setupRedis(ctx, cfg, log)
		if err != nil {
			log.Warn("Redis unavailable, history cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			historyCache = repository.NewRedisHistoryCache(redisClient, cfg.RedisHistoryTTL, log)
		}
	} else {
		log.Info("REDIS_ADDR not set, history cache disabled")
	}

	// --- RabbitMQ (опционально) ---
	var publisher interfaces.SceneEventPublisher = messaging.NewNoopPublisher()
	if cfg.RabbitMQURL != "" {
		conn, ch, err := connectRabbitMQ(cfg.RabbitMQURL, log)
		if err != nil {
			log.Warn("RabbitMQ unavailable, scene events disabled", zap.Error(err))
		} else {
			defer conn.Close()
			defer ch.Close()
			publisher, err = messaging.NewRabbitMQPublisher(ch, cfg.SceneEventsQueue, log)
			if err != nil {
				log.Fatal("Failed to create scene event publisher", zap.Error(err))
			}
		}
	} else {
		log.Info("RabbitMQ URL not set, scene events disabled")
	}

	// --- AI client ---
	var aiClient service.AIClient
	if cfg.AIConfigured() {
		aiClient, err = service.NewAIClient(cfg, log)
		if err != nil {
			log.Fatal("Failed to create AI client", zap.Error(err))
		}
	} else {
		log.Warn("AI API key not set, scene analysis will respond with 503")
	}

	// --- Dependency Injection ---
	sceneRepo := repository.NewPgSceneRepository(pool, log)
	breakdownService := service.NewBreakdownService(
		aiClient,
		sceneRepo,
		historyCache,
		publisher,
		service.DefaultGenerationParams(cfg.AITemperature, cfg.AIMaxTokens),
		log,
	)
	verifier, err := authutils.NewJWTVerifier(cfg.JWTSecret, log)
	if err != nil {
		log.Fatal("Failed to create JWT verifier", zap.Error(err))
	}
	sceneHandler := handler.NewSceneHandler(breakdownService, verifier, log)

	// --- HTTP Server Setup (Gin) ---
	gin.SetMode(gin.ReleaseMode)
	if cfg.Env == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(handler.GinZapLogger(log))
	router.Use(gin.Recovery())

	p := ginprometheus.NewPrometheus("gin")

	corsConfig := cors.DefaultConfig()
	allowedOrigins := cfg.GetAllowedOrigins()
	if len(allowedOrigins) > 0 {
		corsConfig.AllowOrigins = allowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
		log.Info("CORS_ALLOWED_ORIGINS is empty, allowing all origins")
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.AllowCredentials = !corsConfig.AllowAllOrigins
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.GET("/health", handler.HealthCheck)
	router.HEAD("/health", handler.HealthCheck)

	sceneHandler.RegisterRoutes(router)

	// Prometheus применяется после регистрации роутов, он же отдает /metrics
	p.Use(router)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AITimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server listen error", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exiting")
}

// setupRedis создает клиент Redis и проверяет соединение.
func setupRedis(ctx context.Context, cfg *config.Config, log *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("unable to ping redis at %s: %w", cfg.RedisAddr, err)
	}
	log.Info("Connected to Redis", zap.String("address", cfg.RedisAddr), zap.Int("db", cfg.RedisDB))
	return client, nil
}

// connectRabbitMQ подключается к RabbitMQ с несколькими попытками и открывает канал.
func connectRabbitMQ(rawURL string, log *zap.Logger) (*amqp.Connection, *amqp.Channel, error) {
	const (
		maxRetries = 5
		retryDelay = 3 * time.Second
	)
	log = log.With(zap.String("url", maskURL(rawURL)))

	var conn *amqp.Connection
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		conn, err = amqp.Dial(rawURL)
		if err == nil {
			break
		}
		log.Warn("RabbitMQ connection failed, retrying...",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxRetries),
			zap.Error(err))
		if attempt < maxRetries {
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxRetries, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}

	go func() {
		closeErr := <-conn.NotifyClose(make(chan *amqp.Error, 1))
		if closeErr != nil {
			log.Error("RabbitMQ connection closed unexpectedly", zap.Error(closeErr))
		}
	}()

	log.Info("Connected to RabbitMQ")
	return conn, ch, nil
}

// maskURL скрывает пароль в URL для логов.
func maskURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "[invalid url]"
	}
	return u.Redacted()
}
