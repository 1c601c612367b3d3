package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort       string
	DatabaseDriver string
	DatabaseURL    string
	LogLevel       string
	AdminUsername  string
	AdminPassword  string
	JWTSecret      string
}

// Load reads .env if present and builds the configuration from the
// environment. An empty DATABASE_URL is not an error: the service runs
// without persistence and every store-backed feature degrades to defaults.
func Load() *Config {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		DatabaseDriver: getEnv("DATABASE_DRIVER", "sqlite3"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		LogLevel:       getEnv("LOG_LEVEL", "INFO"),
		AdminUsername:  getEnv("ADMIN_USERNAME", "admin_abas"),
		AdminPassword:  getEnv("ADMIN_PASSWORD", "pulpopedia"),
		JWTSecret:      getEnv("JWT_SECRET", ""),
	}

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}

	return cfg
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
