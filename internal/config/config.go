package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// StoreKind selects the order repository backend.
type StoreKind string

const (
	StorePostgres StoreKind = "postgres"
	StoreMemory   StoreKind = "memory"
)

type Config struct {
	DatabaseURL     string
	ServerPort      string
	AllowedOrigins  []string
	LogLevel        string
	CompanyCode     string
	Store           StoreKind
	MigrateOnStart  bool
	RedisAddr       string
	CatalogCacheTTL time.Duration
	KafkaBrokers    []string
	KafkaTopic      string
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ttl, err := time.ParseDuration(getEnv("CATALOG_CACHE_TTL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid CATALOG_CACHE_TTL: %w", err)
	}
	migrate, err := strconv.ParseBool(getEnv("MIGRATE_ON_START", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid MIGRATE_ON_START: %w", err)
	}

	cfg := &Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		AllowedOrigins:  splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		CompanyCode:     getEnv("COMPANY_CODE", "1000"),
		Store:           StoreKind(strings.ToLower(getEnv("STORE", string(StorePostgres)))),
		MigrateOnStart:  migrate,
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		CatalogCacheTTL: ttl,
		KafkaBrokers:    splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:      getEnv("KAFKA_TOPIC", "proforma.orders"),
	}

	switch cfg.Store {
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable not set")
		}
	case StoreMemory:
	default:
		return nil, fmt.Errorf("invalid STORE %q: want postgres or memory", cfg.Store)
	}
	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%s", c.ServerPort)
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
