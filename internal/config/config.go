package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// maxSensorSlots caps the SENSOR_ID_<n> style variables.
const maxSensorSlots = 26

type Config struct {
	App struct {
		Port        string
		Debug       bool
		FrontendURL string
	}
	DB struct {
		URL      string
		Host     string
		Port     string
		User     string
		Password string
		DBName   string
		SSLMode  string
		Table    string
	}
	Redis struct {
		Host     string
		Port     string
		Password string
		DB       int
	}
	Mertani struct {
		BaseURL  string
		Email    string
		Password string
	}
	Sync struct {
		Enabled   bool
		Cron      string
		Window    time.Duration
		Workers   int
		BatchSize int
		SensorIDs []string
	}
	Housekeeping struct {
		Enabled      bool
		Interval     time.Duration
		RunRetention time.Duration
	}
	Export struct {
		OutputDir string
	}
	RateLimit struct {
		RequestsPerSecond int
		Burst             int
	}
}

func Load() *Config {
	cfg := &Config{}

	// App
	cfg.App.Port = getEnv("PORT", "8080")
	cfg.App.Debug = getEnvAsBool("DEBUG", false)
	cfg.App.FrontendURL = getEnv("FRONTEND_URL", "http://localhost:3000")

	// DB
	cfg.DB.URL = getEnv("DATABASE_URL", "")
	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnv("DB_PORT", "5432")
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.DB.DBName = getEnv("DB_NAME", "rainfall")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.DB.Table = getEnv("RAINFALL_TABLE", "rainfall_data")

	// Redis
	cfg.Redis.Host = getEnv("REDIS_HOST", "localhost")
	cfg.Redis.Port = getEnv("REDIS_PORT", "6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", 0)

	// Mertani API
	cfg.Mertani.BaseURL = getEnv("MERTANI_BASE_URL", "https://data.mertani.co.id")
	cfg.Mertani.Email = getEnv("MERTANI_USER_EMAIL", "")
	cfg.Mertani.Password = getEnv("MERTANI_USER_PASSWORD", "")

	// Sync
	cfg.Sync.Enabled = getEnvAsBool("SYNC_ENABLED", true)
	cfg.Sync.Cron = getEnv("SYNC_CRON", "0 * * * *")
	cfg.Sync.Window = getEnvAsDuration("SYNC_WINDOW", 24*time.Hour)
	cfg.Sync.Workers = getEnvAsInt("SYNC_WORKERS", 10)
	cfg.Sync.BatchSize = getEnvAsInt("SYNC_BATCH_SIZE", 1000)
	cfg.Sync.SensorIDs = loadSensorIDs()

	// Housekeeping
	cfg.Housekeeping.Enabled = getEnvAsBool("HOUSEKEEPING_ENABLED", true)
	cfg.Housekeeping.Interval = getEnvAsDuration("HOUSEKEEPING_INTERVAL", 6*time.Hour)
	cfg.Housekeeping.RunRetention = getEnvAsDuration("RUN_RETENTION", 30*24*time.Hour)

	// Export
	cfg.Export.OutputDir = getEnv("EXPORT_OUTPUT_DIR", "./data/exports")

	// Rate Limit
	cfg.RateLimit.RequestsPerSecond = getEnvAsInt("RATE_LIMIT_RPS", 10)
	cfg.RateLimit.Burst = getEnvAsInt("RATE_LIMIT_BURST", 20)

	return cfg
}

// loadSensorIDs merges SENSOR_IDS (comma separated) with the numbered
// SENSOR_ID_1..SENSOR_ID_26 variables, dropping blanks and duplicates.
func loadSensorIDs() []string {
	seen := make(map[string]bool)
	var ids []string

	add := func(raw string) {
		id := strings.TrimSpace(raw)
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}

	for _, part := range strings.Split(os.Getenv("SENSOR_IDS"), ",") {
		add(part)
	}
	for i := 1; i <= maxSensorSlots; i++ {
		add(os.Getenv(fmt.Sprintf("SENSOR_ID_%d", i)))
	}

	return ids
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if dur, err := time.ParseDuration(value); err == nil {
			return dur
		}
	}
	return defaultValue
}
