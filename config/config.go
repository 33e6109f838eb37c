package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration, loaded once in main and
// passed to the components that need it.
type Config struct {
	DatabaseURL string
	ListenAddr  string

	// Backfill defaults.
	DefaultChunkSize int
	MaxFetchRetries  int
	RetryBaseDelay   time.Duration

	// Analytics policy defaults. These are documented choices, not
	// values recovered from upstream systems.
	AnomalyWindow      int
	AnomalyThreshold   float64
	ForecastLookback   int
	ForecastSeasonLen  int
	DefaultConfidence  float64
	QueryTimeout       time.Duration

	GeminiAPIKey string
}

// Load reads configuration from the environment, applying defaults for
// everything except DATABASE_URL, which the caller must check.
func Load() Config {
	return Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		ListenAddr:        getEnv("LISTEN_ADDR", ":3000"),
		DefaultChunkSize:  getEnvInt("BACKFILL_CHUNK_SIZE", 1000),
		MaxFetchRetries:   getEnvInt("BACKFILL_MAX_RETRIES", 3),
		RetryBaseDelay:    getEnvDuration("BACKFILL_RETRY_BASE_DELAY", 500*time.Millisecond),
		AnomalyWindow:     getEnvInt("ANOMALY_WINDOW", 7),
		AnomalyThreshold:  getEnvFloat("ANOMALY_THRESHOLD", 3.0),
		ForecastLookback:  getEnvInt("FORECAST_LOOKBACK", 30),
		ForecastSeasonLen: getEnvInt("FORECAST_SEASON_LENGTH", 7),
		DefaultConfidence: getEnvFloat("FORECAST_CONFIDENCE", 0.9),
		QueryTimeout:      getEnvDuration("QUERY_TIMEOUT", 10*time.Second),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
