package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort        string
	MySQLDSN        string
	RedisAddr       string
	MemoryOnly      bool
	WorkerCount     int
	QueueSize       int
	DedupTTL        time.Duration
	StrictDirection bool
}

// Load reads configuration from the environment, after an optional .env
// file. MemoryOnly runs the tracker without MySQL and Redis, seeded from
// the built-in demo ledger.
func Load() (*Config, error) {
	godotenv.Load()

	workerCount, err := getIntEnv("WORKER_COUNT", 4)
	if err != nil {
		return nil, err
	}
	queueSize, err := getIntEnv("QUEUE_SIZE", 1000)
	if err != nil {
		return nil, err
	}
	dedupTTL, err := getDurationEnv("COMMAND_DEDUP_TTL", 2*time.Second)
	if err != nil {
		return nil, err
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", ":8080"),
		MySQLDSN:        getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/stocktalk?parseTime=true&clientFoundRows=true"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		MemoryOnly:      getBoolEnv("MEMORY_ONLY", false),
		WorkerCount:     workerCount,
		QueueSize:       queueSize,
		DedupTTL:        dedupTTL,
		StrictDirection: getBoolEnv("STRICT_DIRECTION", false),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
