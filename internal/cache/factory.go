package cache

import (
	"github.com/redis/go-redis/v9"
)

type Config struct {
	Backend  string
	Capacity int
	Prefix   string
}

func NewStore(cfg Config, redisClient *redis.Client) Store {
	switch cfg.Backend {
	case "redis":
		return NewRedisStore(redisClient, RedisConfig{
			Prefix: cfg.Prefix,
		})
	default:
		return NewMemoryStore(cfg.Capacity)
	}
}
