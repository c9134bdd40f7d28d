package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	Port   string
	APIKey string

	// AI provider
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	AITimeout     time.Duration

	// PDF extraction collaborator; empty disables pdf uploads.
	ExtractorURL     string
	ExtractorTimeout time.Duration

	// Pipeline knobs
	MaxConcurrentGenerations int
	GenerationTimeout        time.Duration
	MaxModuleDurationMinutes int
	MaxTopicsPerModule       int

	// Session store
	SessionTTL  time.Duration
	ArtifactDir string

	// Artifact download tokens
	JWTSecret   string
	DownloadTTL time.Duration

	// Optional event broker
	RabbitMQURL string
}

// Load reads configuration from the environment with sane defaults.
func Load() *Config {
	return &Config{
		Port:   getEnv("PORT", "8080"),
		APIKey: getEnv("API_KEY", ""),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o"),
		AITimeout:     getDuration("AI_TIMEOUT", 2*time.Minute),

		ExtractorURL:     getEnv("EXTRACTOR_URL", ""),
		ExtractorTimeout: getDuration("EXTRACTOR_TIMEOUT", 5*time.Minute),

		MaxConcurrentGenerations: getInt("MAX_CONCURRENT_GENERATIONS", 4),
		GenerationTimeout:        getDuration("GENERATION_TIMEOUT", 5*time.Minute),
		MaxModuleDurationMinutes: getInt("MAX_MODULE_DURATION_MINUTES", 120),
		MaxTopicsPerModule:       getInt("MAX_TOPICS_PER_MODULE", 4),

		SessionTTL:  getDuration("SESSION_TTL", 2*time.Hour),
		ArtifactDir: getEnv("ARTIFACT_DIR", "./artifacts"),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		DownloadTTL: getDuration("DOWNLOAD_TTL", 15*time.Minute),

		RabbitMQURL: getEnv("RABBITMQ_URL", ""),
	}
}

// getEnv gets environment variable with fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
