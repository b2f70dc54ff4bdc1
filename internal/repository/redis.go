package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"learnhub/internal/config"
	"learnhub/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	activeFlashSaleKey = "flash_sale:active"
	rateLimitPrefix    = "rate_limit:"
)

var errNilClient = errors.New("redis client is nil")

// cachedSale wraps the active sale so that "no sale right now" can be cached too.
type cachedSale struct {
	Sale *models.FlashSale `json:"sale"`
}

type RedisCache struct {
	client *redis.Client
}

// NewRedisClient builds a client from configuration without connecting.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (r *RedisCache) GetActiveFlashSale(ctx context.Context) (*models.FlashSale, bool, error) {
	if r.client == nil {
		return nil, false, errNilClient
	}
	val, err := r.client.Get(ctx, activeFlashSaleKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get flash sale from redis: %w", err)
	}

	var cached cachedSale
	if err := json.Unmarshal(val, &cached); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal flash sale: %w", err)
	}
	return cached.Sale, true, nil
}

func (r *RedisCache) SetActiveFlashSale(ctx context.Context, sale *models.FlashSale, ttl time.Duration) error {
	if r.client == nil {
		return errNilClient
	}
	data, err := json.Marshal(cachedSale{Sale: sale})
	if err != nil {
		return fmt.Errorf("failed to marshal flash sale: %w", err)
	}
	if err := r.client.Set(ctx, activeFlashSaleKey, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set flash sale in redis: %w", err)
	}
	return nil
}

func (r *RedisCache) InvalidateActiveFlashSale(ctx context.Context) error {
	if r.client == nil {
		return errNilClient
	}
	if err := r.client.Del(ctx, activeFlashSaleKey).Err(); err != nil {
		return fmt.Errorf("failed to delete flash sale from redis: %w", err)
	}
	return nil
}

// CheckRateLimit counts a hit for key in a fixed window and reports whether it is within limit.
func (r *RedisCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, errNilClient
	}
	k := rateLimitPrefix + key
	count, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, k, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}
	return count <= int64(limit), nil
}

func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
