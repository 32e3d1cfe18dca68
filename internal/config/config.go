package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Remote content service
	ContentServiceURL    string
	ContentServiceAPIKey string

	// Uploads: payloads above the inline limit are staged to a one-time
	// write location instead of riding in the request body.
	InlineUploadLimit int64

	// Enhancement polling
	PollIntervalSeconds int
	PollMaxAttempts     int

	// Scheduled-content monitoring
	MonitorCacheTTLSeconds int
	MonitorRefreshSpec     string

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                   getEnvOrDefault("PORT", "8080"),
		Env:                    getEnvOrDefault("ENV", "development"),
		DatabaseURL:            mustGetEnv("DATABASE_URL"),
		RedisURL:               mustGetEnv("REDIS_URL"),
		JWTSecret:              mustGetEnv("JWT_SECRET"),
		ContentServiceURL:      mustGetEnv("CONTENT_SERVICE_URL"),
		ContentServiceAPIKey:   getEnvOrDefault("CONTENT_SERVICE_API_KEY", ""),
		InlineUploadLimit:      int64(getEnvAsIntOrDefault("INLINE_UPLOAD_LIMIT_BYTES", 512*1024)),
		PollIntervalSeconds:    getEnvAsIntOrDefault("POLL_INTERVAL_SECONDS", 6),
		PollMaxAttempts:        getEnvAsIntOrDefault("POLL_MAX_ATTEMPTS", 30),
		MonitorCacheTTLSeconds: getEnvAsIntOrDefault("MONITOR_CACHE_TTL_SECONDS", 300),
		MonitorRefreshSpec:     getEnvOrDefault("MONITOR_REFRESH_SPEC", "@every 5m"),
		FrontendURL:            getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
