package repository

import (
	"context"
	"sync"
	"time"

	"learnhub/internal/domain"
	"learnhub/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverCache uses primary until it fails, then serves from fallback and
// retries primary once per recoveryInterval.
type FailoverCache struct {
	primary  domain.Cache
	fallback domain.Cache
	logger   *zerolog.Logger

	mu        sync.Mutex
	isDown    bool
	lastCheck time.Time
}

func NewFailoverCache(primary, fallback domain.Cache, logger *zerolog.Logger) *FailoverCache {
	return &FailoverCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// usePrimary reports whether the next call should go to primary.
func (r *FailoverCache) usePrimary() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.isDown {
		return true
	}
	if time.Since(r.lastCheck) > recoveryInterval {
		r.lastCheck = time.Now()
		return true
	}
	return false
}

func (r *FailoverCache) report(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		if r.isDown {
			r.logger.Info().Msg("Primary cache recovered")
		}
		r.isDown = false
		return
	}
	if !r.isDown {
		r.logger.Error().Err(err).Msg("Primary cache failed, falling back to memory")
	}
	r.isDown = true
	r.lastCheck = time.Now()
}

// Down reports whether calls are currently served by the fallback.
func (r *FailoverCache) Down() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isDown
}

func (r *FailoverCache) GetActiveFlashSale(ctx context.Context) (*models.FlashSale, bool, error) {
	if r.usePrimary() {
		sale, found, err := r.primary.GetActiveFlashSale(ctx)
		r.report(err)
		if err == nil {
			return sale, found, nil
		}
	}
	return r.fallback.GetActiveFlashSale(ctx)
}

func (r *FailoverCache) SetActiveFlashSale(ctx context.Context, sale *models.FlashSale, ttl time.Duration) error {
	if r.usePrimary() {
		err := r.primary.SetActiveFlashSale(ctx, sale, ttl)
		r.report(err)
		if err == nil {
			return nil
		}
	}
	return r.fallback.SetActiveFlashSale(ctx, sale, ttl)
}

// InvalidateActiveFlashSale clears both layers so a recovered primary never
// serves a sale the fallback already dropped.
func (r *FailoverCache) InvalidateActiveFlashSale(ctx context.Context) error {
	fallbackErr := r.fallback.InvalidateActiveFlashSale(ctx)
	if r.usePrimary() {
		err := r.primary.InvalidateActiveFlashSale(ctx)
		r.report(err)
	}
	return fallbackErr
}

func (r *FailoverCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		r.report(err)
		if err == nil {
			return allowed, nil
		}
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
