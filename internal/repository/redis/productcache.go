package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wovenmarket/catalog/internal/domain"
	apperrors "github.com/wovenmarket/catalog/pkg/errors"
)

const keyPrefix = "catalog:product:"

// ProductCache caches product snapshots in Redis to keep hot detail reads off
// the database.
type ProductCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProductCache creates a new Redis-backed product cache.
func NewProductCache(client *redis.Client, ttl time.Duration) *ProductCache {
	return &ProductCache{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves a cached product by ID.
func (c *ProductCache) Get(ctx context.Context, id string) (*domain.Product, error) {
	key := keyPrefix + id

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("redis get product: %w", err)
	}

	var product domain.Product
	if err := json.Unmarshal(data, &product); err != nil {
		return nil, fmt.Errorf("unmarshal cached product: %w", err)
	}

	return &product, nil
}

// Set stores a product snapshot with the configured TTL.
func (c *ProductCache) Set(ctx context.Context, product *domain.Product) error {
	key := keyPrefix + product.ID

	data, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set product: %w", err)
	}

	return nil
}

// Delete removes a cached product by ID.
func (c *ProductCache) Delete(ctx context.Context, id string) error {
	key := keyPrefix + id

	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del product: %w", err)
	}

	return nil
}
