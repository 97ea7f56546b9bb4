package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const qtyKeyPrefix = "qty:"

var adjustQuantityScript = redis.NewScript(`
local key = KEYS[1]
local delta = tonumber(ARGV[1])

local current = tonumber(redis.call('GET', key)) or 0
local next = current + delta
if next < 0 then
	next = 0
end

redis.call('SET', key, next)
return next
`)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) SetQuantity(ctx context.Context, itemID int64, quantity int) error {
	return r.client.Set(ctx, qtyKey(itemID), quantity, 0).Err()
}

func (r *RedisAdapter) AdjustQuantity(ctx context.Context, itemID int64, delta int) (int, error) {
	result, err := adjustQuantityScript.Run(ctx, r.client, []string{qtyKey(itemID)}, delta).Int()
	if err != nil {
		return 0, err
	}

	return result, nil
}

func (r *RedisAdapter) GetQuantity(ctx context.Context, itemID int64) (int, bool, error) {
	quantity, err := r.client.Get(ctx, qtyKey(itemID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	return quantity, true, nil
}

func (r *RedisAdapter) SetDedup(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ClearDedup(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func qtyKey(itemID int64) string {
	return fmt.Sprintf("%s%d", qtyKeyPrefix, itemID)
}
