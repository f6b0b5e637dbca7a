package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const keyPrefix = "deepfake:verdict:"

// VerdictCache cache-aside слой в Redis для результатов проверки.
// Без клиента все операции становятся пустыми.
type VerdictCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// NewVerdictCache подключается к Redis. Пустой URL или ошибка соединения
// отключают кэширование, но не мешают старту.
func NewVerdictCache(redisURL string, ttl time.Duration, logger *logrus.Logger) *VerdictCache {
	c := &VerdictCache{ttl: ttl, logger: logger}
	if redisURL == "" {
		logger.Info("Redis не настроен, кэш вердиктов отключен")
		return c
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warnf("Некорректный REDIS_URL, кэш вердиктов отключен: %v", err)
		return c
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warnf("Redis недоступен, кэш вердиктов отключен: %v", err)
		_ = rdb.Close()
		return c
	}

	logger.Info("Redis подключен, кэш вердиктов включен")
	c.rdb = rdb
	return c
}

// Enabled сообщает, подключен ли Redis
func (c *VerdictCache) Enabled() bool {
	return c != nil && c.rdb != nil
}

// Get читает значение по ключу в dst. Возвращает false, если записи нет.
func (c *VerdictCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	data, err := c.rdb.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode cached verdict: %w", err)
	}
	return true, nil
}

// Set сохраняет значение с TTL
func (c *VerdictCache) Set(ctx context.Context, key string, v any) error {
	if !c.Enabled() {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode verdict: %w", err)
	}
	return c.rdb.Set(ctx, keyPrefix+key, b, c.ttl).Err()
}

// Close закрывает соединение с Redis
func (c *VerdictCache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Close()
}
