package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath       string
	APIEndpoint  string
	PollInterval time.Duration
}

func Load() Config {
	_ = godotenv.Load()

	return Config{
		DBPath:       getEnv("DB_PATH", "exchange_rates.db"),
		APIEndpoint:  getEnv("API_ENDPOINT", "https://api.exchangeratesapi.io"),
		PollInterval: getEnvDuration("POLL_INTERVAL", time.Hour),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
