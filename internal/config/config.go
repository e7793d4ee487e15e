package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"github.com/Simplici0/printcost/internal/logger"
)

const (
	defaultDBPath      = "./dev.db"
	defaultPort        = "8080"
	defaultEnv         = "development"
	defaultPricingPath = "./pricing.yaml"
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	AdminEmail    string
	AdminPassword string
	SessionSecret string
	DBPath        string
	Port          string
	Env           string
	PricingPath   string
}

// Load reads environment variables and returns a populated Config.
func Load() Config {
	loadDotEnv(".env")

	cfg := Config{
		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		DBPath:        getEnvString("DB_PATH", defaultDBPath),
		Port:          getEnvString("PORT", defaultPort),
		Env:           getEnvString("APP_ENV", defaultEnv),
		PricingPath:   getEnvString("PRICING_PATH", defaultPricingPath),
	}

	if cfg.AdminEmail == "" {
		logger.Warn("ADMIN_EMAIL is not set")
	}
	if cfg.AdminPassword == "" {
		logger.Warn("ADMIN_PASSWORD is not set")
	}
	if cfg.SessionSecret == "" {
		logger.Warn("SESSION_SECRET is not set")
	}

	return cfg
}

// IsDev reports whether the service runs in a development environment.
func (c Config) IsDev() bool {
	return c.Env == "" || c.Env == "dev" || c.Env == defaultEnv
}

// loadDotEnv loads KEY=VALUE pairs from a dotenv file. A missing file is not an error and
// variables already present in the environment are kept.
func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("failed to load dotenv file", "path", path, "error", err)
	}
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
