package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"scenebreak/internal/interfaces"
	"scenebreak/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Compile-time check to ensure redisHistoryCache implements HistoryCache
var _ interfaces.HistoryCache = (*redisHistoryCache)(nil)

const (
	historyKeyPrefix           = "scene_history:"
	historyGenerationKeyPrefix = "scene_history_gen:"

	// Ключ поколения живет дольше данных, иначе сброс счетчика мог бы совпасть со старым снимком.
	minHistoryGenerationTTL = 24 * time.Hour
)

// setIfGenerationScript пишет историю, только если поколение не изменилось после чтения.
// KEYS[1] - ключ истории, KEYS[2] - ключ поколения.
// ARGV[1] - ожидаемое поколение, ARGV[2] - данные, ARGV[3] - TTL в миллисекундах.
var setIfGenerationScript = redis.NewScript(`
local current = redis.call('GET', KEYS[2])
if current == false then
	current = '0'
end
if current ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

type redisHistoryCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisHistoryCache создает кэш истории сцен в Redis.
func NewRedisHistoryCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) interfaces.HistoryCache {
	return &redisHistoryCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("RedisHistoryCache"),
	}
}

func historyKey(userID uuid.UUID) string {
	return historyKeyPrefix + userID.String()
}

func historyGenerationKey(userID uuid.UUID) string {
	return historyGenerationKeyPrefix + userID.String()
}

func (c *redisHistoryCache) generationTTL() time.Duration {
	if 2*c.ttl > minHistoryGenerationTTL {
		return 2 * c.ttl
	}
	return minHistoryGenerationTTL
}

func (c *redisHistoryCache) Get(ctx context.Context, userID uuid.UUID) ([]models.SceneHistoryItem, int64, bool, error) {
	values, err := c.client.MGet(ctx, historyKey(userID), historyGenerationKey(userID)).Result()
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to read history cache: %w", err)
	}

	var generation int64
	if raw, ok := values[1].(string); ok {
		generation, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, 0, false, fmt.Errorf("invalid history cache generation %q: %w", raw, err)
		}
	}

	data, ok := values[0].(string)
	if !ok {
		return nil, generation, false, nil
	}

	var items []models.SceneHistoryItem
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		// Битая запись: удаляем и считаем промахом
		c.logger.Warn("Corrupted history cache entry, dropping", zap.String("userID", userID.String()), zap.Error(err))
		_ = c.client.Del(ctx, historyKey(userID)).Err()
		return nil, generation, false, nil
	}
	return items, generation, true, nil
}

func (c *redisHistoryCache) Set(ctx context.Context, userID uuid.UUID, generation int64, items []models.SceneHistoryItem) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode history for cache: %w", err)
	}

	stored, err := setIfGenerationScript.Run(ctx, c.client,
		[]string{historyKey(userID), historyGenerationKey(userID)},
		strconv.FormatInt(generation, 10), data, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("failed to write history cache: %w", err)
	}
	if stored == 0 {
		c.logger.Debug("History changed while loading, cache write skipped",
			zap.String("userID", userID.String()), zap.Int64("generation", generation))
		return nil
	}
	c.logger.Debug("History cached", zap.String("userID", userID.String()), zap.Int("count", len(items)), zap.Duration("ttl", c.ttl))
	return nil
}

func (c *redisHistoryCache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	genKey := historyGenerationKey(userID)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, c.generationTTL())
		pipe.Del(ctx, historyKey(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate history cache: %w", err)
	}
	return nil
}

// noopHistoryCache используется, когда Redis не настроен.
type noopHistoryCache struct{}

// NewNoopHistoryCache возвращает кэш, который ничего не хранит.
func NewNoopHistoryCache() interfaces.HistoryCache {
	return noopHistoryCache{}
}

func (noopHistoryCache) Get(context.Context, uuid.UUID) ([]models.SceneHistoryItem, int64, bool, error) {
	return nil, 0, false, nil
}

func (noopHistoryCache) Set(context.Context, uuid.UUID, int64, []models.SceneHistoryItem) error {
	return nil
}

func (noopHistoryCache) Invalidate(context.Context, uuid.UUID) error {
	return nil
}
