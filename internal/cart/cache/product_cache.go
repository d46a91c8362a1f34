package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MiniCooper40/ecommerce-website-sub001/internal/cart/domain"
	"github.com/redis/go-redis/v9"
)

const productTTL = time.Hour

func NewRedisProductCache(client *redis.Client) *RedisProductCache {
	return &RedisProductCache{client: client}
}

type RedisProductCache struct {
	client *redis.Client
}

func (r *RedisProductCache) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	data, err := r.client.Get(ctx, productKey(productID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var product domain.Product
	if err2 := json.Unmarshal(data, &product); err2 != nil {
		return nil, fmt.Errorf("unmarshal product failed: %w", err2)
	}

	return &product, nil
}

func (r *RedisProductCache) SetProduct(ctx context.Context, product *domain.Product) error {
	data, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("marshal product failed: %w", err)
	}

	if err := r.client.Set(ctx, productKey(product.ID), data, productTTL).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisProductCache) InvalidateProduct(ctx context.Context, productID int64) error {
	if err := r.client.Del(ctx, productKey(productID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func productKey(productID int64) string {
	return fmt.Sprintf("product:%d", productID)
}
