package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all application configuration. It is built once at startup
// and treated as immutable afterwards; components receive it at
// construction instead of reading ambient state.
type Config struct {
	DatabaseHost     string
	DatabasePort     string
	DatabaseUser     string
	DatabasePassword string
	DatabaseName     string
	DatabaseSSLMode  string

	WindowDays       int           // rolling historical window fetched per run
	DayBoundary      time.Duration // offset of the accounting-day boundary before midnight UTC
	ExcludedMachines []string      // event/test machines dropped from every series
	SuccessOnly      bool          // aggregate only successful orders into sales/transactions

	RollingWindows []int
	LagOffsets     []int

	TreeCount    int
	RandomSeed   int64
	MinTrainRows int

	ModelPath   string
	EncoderPath string

	LogLevel string
}

// Defaults mirror the production deployment: a 30-day window, the 22:30
// SGT (14:30 UTC) day boundary and the four event machines.
var defaultExcludedMachines = []string{"852298", "852308", "852309", "852311"}

// Load initializes configuration from environment variables.
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	cfg := Config{
		DatabaseHost:     getEnvWithDefault("DB_HOST", "localhost"),
		DatabasePort:     getEnvWithDefault("DB_PORT", "5432"),
		DatabaseUser:     getEnvWithDefault("DB_USER", "postgres"),
		DatabasePassword: os.Getenv("DB_PASSWORD"),
		DatabaseName:     getEnvWithDefault("DB_NAME", "sugarcane"),
		DatabaseSSLMode:  getEnvWithDefault("DB_SSLMODE", "require"),

		WindowDays:       getEnvIntWithDefault("WINDOW_DAYS", 30),
		DayBoundary:      getEnvDurationWithDefault("DAY_BOUNDARY_OFFSET", 14*time.Hour+30*time.Minute),
		ExcludedMachines: getEnvListWithDefault("EXCLUDED_MACHINES", defaultExcludedMachines),
		SuccessOnly:      getEnvBoolWithDefault("SUCCESS_ONLY", false),

		RollingWindows: []int{3, 7, 14},
		LagOffsets:     []int{1, 7},

		TreeCount:    getEnvIntWithDefault("TREE_COUNT", 200),
		RandomSeed:   int64(getEnvIntWithDefault("RANDOM_SEED", 42)),
		MinTrainRows: getEnvIntWithDefault("MIN_TRAIN_ROWS", 50),

		ModelPath:   getEnvWithDefault("MODEL_PATH", "sales_model.gob"),
		EncoderPath: getEnvWithDefault("ENCODER_PATH", "encoder.gob"),

		LogLevel: getEnvWithDefault("LOG_LEVEL", "info"),
	}

	return &cfg, nil
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvListWithDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
