package repository

import (
	"context"
	"sync"
	"time"

	"learnhub/internal/models"
)

// MemoryCache is the process-local Cache used without Redis and as the failover target.
type MemoryCache struct {
	mu         sync.Mutex
	sale       *models.FlashSale
	saleSet    bool
	saleExpiry time.Time
	rateLimits map[string]*rateLimitEntry
	now        func() time.Time
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		rateLimits: make(map[string]*rateLimitEntry),
		now:        time.Now,
	}
}

func (c *MemoryCache) GetActiveFlashSale(ctx context.Context) (*models.FlashSale, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.saleSet || c.now().After(c.saleExpiry) {
		return nil, false, nil
	}
	return c.sale, true, nil
}

func (c *MemoryCache) SetActiveFlashSale(ctx context.Context, sale *models.FlashSale, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sale = sale
	c.saleSet = true
	c.saleExpiry = c.now().Add(ttl)
	return nil
}

func (c *MemoryCache) InvalidateActiveFlashSale(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sale = nil
	c.saleSet = false
	return nil
}

func (c *MemoryCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	entry, ok := c.rateLimits[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{expiresAt: now.Add(window)}
		c.rateLimits[key] = entry
	}
	entry.count++
	return entry.count <= limit, nil
}
