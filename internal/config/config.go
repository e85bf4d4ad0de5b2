package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	GeminiAPIKey     string
	GeminiModel      string
	AITimeout        time.Duration
	DatabaseDriver   string
	DatabaseURL      string
	HTTPPort         string
	LogLevel         string
	JWTSecret        string
	PromptsFile      string
	SingleFlightSend bool
	GuestLimit       int
	GuestIdleTTL     time.Duration
}

func Load() (*Config, error) {
	cfg := read()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadForTokens is Load for commands that only mint tokens. Only JWT_SECRET
// is checked.
func LoadForTokens() (*Config, error) {
	cfg := read()
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("invalid configuration: JWT_SECRET environment variable is required")
	}
	return cfg, nil
}

func read() *Config {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	return &Config{
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-1.5-flash-latest"),
		AITimeout:        getEnvAsDuration("AI_TIMEOUT", 30*time.Second),
		DatabaseDriver:   strings.ToLower(getEnv("DATABASE_DRIVER", "sqlite")),
		DatabaseURL:      getEnv("DATABASE_URL", "prep_assistant.db"),
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		PromptsFile:      getEnv("PROMPTS_FILE", ""),
		SingleFlightSend: getEnvAsBool("CHAT_SINGLE_FLIGHT_SEND", false),
		GuestLimit:       getEnvAsInt("GUEST_LIMIT", 1000),
		GuestIdleTTL:     getEnvAsDuration("GUEST_IDLE_TTL", 2*time.Hour),
	}
}

func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be sqlite or postgres, got %q", c.DatabaseDriver)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL cannot be empty")
	}
	if c.AITimeout <= 0 {
		return fmt.Errorf("AI_TIMEOUT must be positive")
	}
	if c.GuestLimit <= 0 {
		return fmt.Errorf("GUEST_LIMIT must be positive")
	}
	if c.GuestIdleTTL <= 0 {
		return fmt.Errorf("GUEST_IDLE_TTL must be positive")
	}
	return nil
}

func (c *Config) Debug() bool {
	return strings.EqualFold(c.LogLevel, "DEBUG")
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(getEnv(key, "")))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(strings.TrimSpace(getEnv(key, "")))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(strings.TrimSpace(getEnv(key, "")))
	if err != nil {
		return defaultValue
	}
	return value
}
