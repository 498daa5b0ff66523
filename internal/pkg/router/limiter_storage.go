package router

import (
	"net"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/storage/redis"

	"github.com/ManuelReschke/PawPantry/internal/pkg/cache"
	"github.com/ManuelReschke/PawPantry/internal/pkg/env"
)

// NewLimiterStorage keeps rate limiter counters in Redis so every instance shares
// the same window. Returns nil when no cache client is configured.
func NewLimiterStorage() fiber.Storage {
	cacheClient := cache.GetClient()
	if cacheClient == nil {
		log.Warn("[Router] No cache client, rate limiter stays in memory")
		return nil
	}

	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")
	addr := cacheClient.Options().Addr
	if h, p, err := net.SplitHostPort(addr); err == nil {
		host = h
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}
	// Prefer password from the underlying client if present
	if p := cacheClient.Options().Password; p != "" {
		password = p
	}

	// Separate database for limiter counters (cache uses DB 0)
	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: env.GetEnvInt("API_RATE_LIMIT_DB", 1),
		Reset:    false,
	})
}
