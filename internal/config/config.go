package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the planner services
type Config struct {
	// City data: a YAML file, a SQLite database or a Postgres URL
	CitySource string

	// HTTP
	Port           string
	AllowedOrigins []string

	// Planning
	QueryTimeout    time.Duration
	PlanCacheTTL    time.Duration
	MaxK            int
	TransferPenalty int
}

// LoadEnvFiles loads .env, then lets .env.local override it. Missing files are
// ignored.
func LoadEnvFiles(dir string) {
	_ = godotenv.Load(dir + "/.env")
	_ = godotenv.Overload(dir + "/.env.local") // Overload forces override of existing values
}

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	return &Config{
		CitySource: getEnv("CITY_SOURCE", "data/city.yaml"),

		Port:           getEnv("PORT", "8081"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),

		QueryTimeout:    time.Duration(getEnvInt("QUERY_TIMEOUT_MS", 5000)) * time.Millisecond,
		PlanCacheTTL:    time.Duration(getEnvInt("PLAN_CACHE_TTL_SECONDS", 300)) * time.Second,
		MaxK:            getEnvInt("MAX_K", 10),
		TransferPenalty: getEnvInt("DEFAULT_TRANSFER_PENALTY", 1000),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
