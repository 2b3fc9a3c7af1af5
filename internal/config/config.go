package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port     string
	MongoURI string
	RedisURL string

	// Gemini configuration
	GeminiAPIKey string
	GeminiModel  string

	// All palm photos are assumed to share one declared MIME type;
	// there is no per-file content-type detection.
	PhotoMIMEType string

	// Transient staging of downloaded photos
	TempDir       string
	TempMaxAge    time.Duration
	SweepInterval time.Duration

	// Upper bound on readings processed simultaneously
	MaxConcurrentReadings int
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "3001"),
		MongoURI: getEnv("MONGODB_URI", ""),
		RedisURL: getEnv("REDIS_URL", ""),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		PhotoMIMEType: getEnv("PHOTO_MIME_TYPE", "image/jpeg"),

		TempDir:       getEnv("TEMP_DIR", os.TempDir()),
		TempMaxAge:    getDurationEnv("TEMP_MAX_AGE_MINUTES", 60),
		SweepInterval: getDurationEnv("TEMP_SWEEP_INTERVAL_MINUTES", 15),

		MaxConcurrentReadings: getIntEnv("MAX_CONCURRENT_READINGS", 4),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultMinutes int) time.Duration {
	return time.Duration(getIntEnv(key, defaultMinutes)) * time.Minute
}
