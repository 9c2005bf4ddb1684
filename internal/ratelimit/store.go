package ratelimit

import (
	"time"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// New builds a Redis-backed limiter allowing limit requests per period.
func New(rdb *redis.Client, limit int64, period time.Duration) (*limiter.Limiter, error) {
	store, err := limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{
		Prefix: "ratelimit:settlement",
	})
	if err != nil {
		return nil, err
	}
	return limiter.New(store, limiter.Rate{Period: period, Limit: limit}), nil
}
