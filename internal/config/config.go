package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"demand-matrix/internal/directory"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Weekday estimation modes.
const (
	WeekdayAverage  = "average"
	WeekdayCalendar = "calendar"
)

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Directory directory.Config
	DataPath  string
	DBPath    string
	LogDir    string
	CacheDir  string

	MaxPeriods         int
	MaxSkills          int
	ResolveTTL         time.Duration
	ResolveConcurrency int
	ForecastTimeout    time.Duration
	WeekdayMode        string

	EnableMermaidCharts bool
}

// UseDirectory reports whether tasks and names come from the remote directory
// instead of the local database.
func (c *AppConfig) UseDirectory() bool {
	return c.Directory.BaseURL != ""
}

// Load loads the configuration from .env files and environment variables.
func Load() (*AppConfig, error) {
	// 1. Try to load from the executable's directory (highest priority for MCP servers)
	exePath, err := os.Executable()
	exeDir := ""
	if err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}

	// 2. Fallback to current working directory (useful for development/go run)
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	// 3. Resolve Data Paths
	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		if exeDir != "" {
			dataPath = exeDir
		} else {
			dataPath = "."
		}
	}

	logDir := filepath.Join(dataPath, "logs")
	cacheDir := filepath.Join(dataPath, "cache")

	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		log.Warn().Err(err).Str("path", cacheDir).Msg("Failed to create cache directory")
	}

	weekdayMode := strings.ToLower(getEnv("WEEKDAY_STRATEGY", WeekdayAverage))
	if weekdayMode != WeekdayAverage && weekdayMode != WeekdayCalendar {
		log.Warn().Str("value", weekdayMode).Msg("Unknown WEEKDAY_STRATEGY, using average")
		weekdayMode = WeekdayAverage
	}

	cfg := &AppConfig{
		Directory: directory.Config{
			BaseURL:      getEnv("DIRECTORY_URL", ""),
			Token:        getEnv("DIRECTORY_TOKEN", ""),
			RequestDelay: time.Duration(getEnvInt("DIRECTORY_REQUEST_DELAY_MS", 0)) * time.Millisecond,
			CacheTTL:     getEnvDuration("DIRECTORY_CACHE_TTL", time.Minute),
		},
		DataPath:            dataPath,
		DBPath:              getEnv("DEMAND_DB_PATH", filepath.Join(dataPath, "demand.db")),
		LogDir:              logDir,
		CacheDir:            cacheDir,
		MaxPeriods:          getEnvInt("MAX_PERIODS", 24),
		MaxSkills:           getEnvInt("MAX_SKILLS", 100),
		ResolveTTL:          getEnvDuration("RESOLVE_TTL", 5*time.Minute),
		ResolveConcurrency:  getEnvInt("RESOLVE_CONCURRENCY", 8),
		ForecastTimeout:     getEnvDuration("FORECAST_TIMEOUT", 30*time.Second),
		WeekdayMode:         weekdayMode,
		EnableMermaidCharts: getEnvBool("ENABLE_MERMAID_CHARTS", false),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if intVal, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && intVal >= 0 {
			return intVal
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring invalid integer setting")
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && d > 0 {
			return d
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring invalid duration setting")
	}
	return fallback
}
