package cache

import (
	"strconv"

	"github.com/gofiber/storage/redis"
)

// RateLimitDB keeps limiter counters apart from the plan cache
const RateLimitDB = 1

// NewFiberStorage returns a fiber.Storage on its own logical database.
// It panics when the server is unreachable, so callers ping first.
func NewFiberStorage(cfg Config, database int) *redis.Storage {
	port, err := strconv.Atoi(cfg.Port)
	if err != nil {
		port = 6379
	}
	return redis.New(redis.Config{
		Host:     cfg.Host,
		Port:     port,
		Password: cfg.Password,
		Database: database,
		Reset:    false,
	})
}
