package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"scenebreak/internal/utils"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config содержит конфигурацию сервиса разбора сцен
type Config struct {
	Env         string `envconfig:"ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`
	ServerPort  string `envconfig:"SERVER_PORT" default:"8080"`
	SecretsDir  string `envconfig:"SECRETS_DIR" default:"/run/secrets"`

	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`

	// Настройки AI. Пустой AI_BASE_URL означает endpoint по умолчанию для AI_CLIENT_TYPE
	// (для openai это OpenAI-совместимый endpoint Groq).
	AIClientType  string        `envconfig:"AI_CLIENT_TYPE" default:"openai"` // openai | ollama | anthropic
	AIBaseURL     string        `envconfig:"AI_BASE_URL" default:""`
	AIModel       string        `envconfig:"AI_MODEL" default:"llama-3.3-70b-versatile"`
	AITimeout     time.Duration `envconfig:"AI_TIMEOUT" default:"60s"`
	AITemperature float64       `envconfig:"AI_TEMPERATURE" default:"0.2"`
	AIMaxTokens   int           `envconfig:"AI_MAX_TOKENS" default:"2000"`
	// Секретное поле БЕЗ envconfig тега. Может отсутствовать: тогда анализ отвечает 503.
	AIAPIKey string

	// Настройки PostgreSQL
	DBHost        string        `envconfig:"DB_HOST" default:"localhost"`
	DBPort        string        `envconfig:"DB_PORT" default:"5432"`
	DBUser        string        `envconfig:"DB_USER" default:"postgres"`
	DBName        string        `envconfig:"DB_NAME" default:"scenebreak"`
	DBSSLMode     string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns    int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout time.Duration `envconfig:"DB_MAX_IDLE_MINUTES" default:"5m"`
	DBAutoMigrate bool          `envconfig:"DB_AUTO_MIGRATE" default:"true"`
	DBPassword    string

	JWTSecret string

	// Кэш истории. Пустой адрес отключает Redis.
	RedisAddr       string        `envconfig:"REDIS_ADDR" default:""`
	RedisDB         int           `envconfig:"REDIS_DB" default:"0"`
	RedisHistoryTTL time.Duration `envconfig:"REDIS_HISTORY_TTL" default:"5m"`
	RedisPassword   string

	// События о сценах. Пустой URL отключает публикацию.
	RabbitMQURL      string `envconfig:"RABBITMQ_URL" default:""`
	SceneEventsQueue string `envconfig:"SCENE_EVENTS_QUEUE" default:"scene_events"`
}

// GetDSN возвращает строку подключения (DSN) для PostgreSQL
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// GetAllowedOrigins разбирает CORS_ALLOWED_ORIGINS в список.
func (c *Config) GetAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}
	return strings.Split(strings.ReplaceAll(c.CORSAllowedOrigins, " ", ""), ",")
}

// AIConfigured сообщает, можно ли создать AI клиент.
// Ollama работает без ключа.
func (c *Config) AIConfigured() bool {
	return c.AIAPIKey != "" || strings.EqualFold(c.AIClientType, "ollama")
}

// LoadConfig загружает конфигурацию из .env (если есть), переменных окружения и секретов
func LoadConfig(envFilePath string) (*Config, error) {
	if envFilePath != "" {
		if _, err := os.Stat(envFilePath); err == nil {
			if err := godotenv.Load(envFilePath); err != nil {
				log.Printf("Warning: Could not load %s file: %v", envFilePath, err)
			} else {
				log.Printf("Loaded configuration from %s", envFilePath)
			}
		} else if !os.IsNotExist(err) {
			log.Printf("Warning: Error checking %s file: %v", envFilePath, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env vars: %w", err)
	}

	// Обязательные секреты
	var loadErr error
	cfg.DBPassword, loadErr = utils.ReadSecret(cfg.SecretsDir, "db_password")
	if loadErr != nil {
		return nil, loadErr
	}
	cfg.JWTSecret, loadErr = utils.ReadSecret(cfg.SecretsDir, "jwt_secret")
	if loadErr != nil {
		return nil, loadErr
	}

	// Опциональные секреты
	if key, err := utils.ReadSecret(cfg.SecretsDir, "ai_api_key"); err == nil {
		cfg.AIAPIKey = key
	} else {
		log.Printf("Optional secret 'ai_api_key' not found or failed to read: %v. Scene analysis will be unavailable.", err)
	}
	if redisPass, err := utils.ReadSecret(cfg.SecretsDir, "redis_password"); err == nil {
		cfg.RedisPassword = redisPass
	} else {
		log.Printf("Optional secret 'redis_password' not found or failed to read: %v. Assuming no password.", err)
	}
	if mqURL, err := utils.ReadSecret(cfg.SecretsDir, "rabbitmq_url"); err == nil {
		cfg.RabbitMQURL = mqURL
	}

	log.Printf("Configuration loaded: env=%s port=%s ai_client=%s ai_model=%s db=%s",
		cfg.Env, cfg.ServerPort, cfg.AIClientType, cfg.AIModel, cfg.getMaskedDSN())
	return &cfg, nil
}

// getMaskedDSN возвращает DSN с замаскированным паролем для логирования
func (c *Config) getMaskedDSN() string {
	dsn := c.GetDSN()
	parts := strings.Split(dsn, "@")
	if len(parts) != 2 {
		return "[invalid dsn format]"
	}
	userInfo := strings.Split(parts[0], ":")
	if len(userInfo) >= 2 {
		userInfo[len(userInfo)-1] = "********"
	}
	return strings.Join(userInfo, ":") + "@" + parts[1]
}
