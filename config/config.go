package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	MongoURI      string
	MongoDB       string
	RedisAddr     string
	RedisPassword string
	NatsUrl       string
	OtelEndpoint  string
	Env           string // "local" ou "prod"

	CacheTTLMin int // TTL des sets de relations, en minutes
}

func Load() Config {
	return Config{
		MongoURI:      getEnv("MONGO_URI", "mongodb://mongo:27017"),
		MongoDB:       getEnv("MONGO_DB", "krewe"),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		NatsUrl:       getEnv("NATS_URL", "nats://nats:4222"),
		OtelEndpoint:  getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "jaeger:4317"),
		Env:           getEnv("APP_ENV", "local"),
		CacheTTLMin:   getEnvInt("CACHE_TTL_MIN", 1440),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}
