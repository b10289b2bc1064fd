// Package config loads scanner configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration.
type Config struct {
	EnabledExchanges       []string
	MinSpreadPercent       float64
	MinSpreadChangePercent float64
	IgnoreTokensPath       string
	MetricsPort            string
	RedisAddr              string
	MexcAPIKey             string
	MexcAPISecret          string
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in when present.
func Load() Config {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	exchanges := strings.Split(getEnv("ENABLED_EXCHANGES", "mexc,bitget,bybit,gate,okx,lbank,bingx"), ",")
	for i := range exchanges {
		exchanges[i] = strings.TrimSpace(strings.ToLower(exchanges[i]))
	}

	return Config{
		EnabledExchanges:       exchanges,
		MinSpreadPercent:       getEnvFloat("MIN_SPREAD_PERCENT", 1.0),
		MinSpreadChangePercent: getEnvFloat("MIN_SPREAD_CHANGE_PERCENT", 2.0),
		IgnoreTokensPath:       getEnv("IGNORE_TOKENS_PATH", "ignore_tokens.json"),
		MetricsPort:            getEnv("METRICS_PORT", "9090"),
		RedisAddr:              getEnv("REDIS_ADDR", ""),
		MexcAPIKey:             getEnv("MEXC_API_KEY", ""),
		MexcAPISecret:          getEnv("MEXC_API_SECRET", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}
