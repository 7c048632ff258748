package config

import (
	"os"
	"strconv"
	"strings"
)

// Backend selects the durable key-value implementation that holds the
// activity collection.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendFile     Backend = "file"
	BackendRedis    Backend = "redis"
	BackendPostgres Backend = "postgres"
)

// Server captures process-level configuration.
type Server struct {
	Addr string

	StoreBackend Backend
	DataDir      string
	RedisURL     string
	PostgresDSN  string
	MaxLogs      int

	// KafkaBrokers empty disables the activity mirror.
	KafkaBrokers []string
	KafkaTopic   string
}

// FromEnv builds a Server config from environment variables so main stays
// lean.
func FromEnv() Server {
	cfg := Server{
		Addr:         envOr("VAULTTRAIL_ADDR", ":8080"),
		StoreBackend: Backend(envOr("VAULTTRAIL_STORE", string(BackendMemory))),
		DataDir:      envOr("VAULTTRAIL_DATA_DIR", "data"),
		RedisURL:     os.Getenv("VAULTTRAIL_REDIS_URL"),
		PostgresDSN:  os.Getenv("VAULTTRAIL_POSTGRES_DSN"),
		KafkaTopic:   envOr("VAULTTRAIL_KAFKA_TOPIC", "vaulttrail.activities"),
	}

	if brokers := os.Getenv("VAULTTRAIL_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	if raw := os.Getenv("VAULTTRAIL_MAX_LOGS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			cfg.MaxLogs = n
		}
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
