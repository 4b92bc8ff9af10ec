package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv                string
	Port                  string
	DatabaseURL           string
	DBMaxConns            int
	JWTSecret             string
	SchedulerCapacity     int
	ProgressTick          time.Duration
	SimulateWorker        bool
	WorkerPollInterval    time.Duration
	ArtifactDir           string
	HTTPReadTimeout       time.Duration
	HTTPReadHeaderTimeout time.Duration
	HTTPWriteTimeout      time.Duration
	HTTPIdleTimeout       time.Duration
	RateLimitPerMin       int
	CORSAllowedOrigins    []string
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed. DATABASE_URL is optional: without it the service
// runs with in-memory state only.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:                getEnv("APP_ENV", "development"),
		Port:                  getEnv("PORT", "8080"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		DBMaxConns:            getEnvInt("DB_MAX_CONNS", 8),
		JWTSecret:             os.Getenv("JWT_SECRET"),
		SchedulerCapacity:     getEnvInt("SCHEDULER_CAPACITY", 2),
		ProgressTick:          time.Millisecond * time.Duration(getEnvInt("PROGRESS_TICK_MS", 1000)),
		SimulateWorker:        getEnvBool("SIMULATE_WORKER", true),
		WorkerPollInterval:    time.Millisecond * time.Duration(getEnvInt("WORKER_POLL_MS", 2000)),
		ArtifactDir:           getEnv("ARTIFACT_DIR", "./artifacts"),
		HTTPReadTimeout:       time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPReadHeaderTimeout: time.Second * time.Duration(getEnvInt("HTTP_READ_HEADER_TIMEOUT_SECONDS", 5)),
		HTTPWriteTimeout:      time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:       time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:       getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		CORSAllowedOrigins:    splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.SchedulerCapacity < 1 {
		return nil, fmt.Errorf("SCHEDULER_CAPACITY must be at least 1")
	}
	if cfg.DBMaxConns < 1 {
		return nil, fmt.Errorf("DB_MAX_CONNS must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
