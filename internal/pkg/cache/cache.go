package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/DocuChat/internal/pkg/env"
)

// Config describes the Redis compatible cache server.
type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
	PlanTTL  time.Duration
}

func LoadConfig() Config {
	return Config{
		Host:     env.GetEnv("CACHE_HOST", "localhost"),
		Port:     env.GetEnv("CACHE_PORT", "6379"),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       env.GetEnvInt("CACHE_DB", 0),
		PlanTTL:  env.GetEnvDuration("PLAN_CACHE_TTL", 10*time.Minute),
	}
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// NewClient connects to the cache server. An unreachable server only logs;
// callers degrade to the database.
func NewClient(ctx context.Context, cfg Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test the connection
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		log.Printf("[Cache] warning: could not connect to %s: %v", cfg.Addr(), err)
	} else {
		log.Printf("[Cache] connected to %s: %s", cfg.Addr(), pong)
	}
	return client
}
