package config

import (
	"log"
	"os"
)

// Config holds infrastructure configuration loaded from environment variables.
type Config struct {
	// Historical data provider credentials
	ProviderBaseURL    string
	ProviderClientCode string
	ProviderPassword   string
	ProviderTOTPSecret string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	ServerAddr    string
}

// Load reads infrastructure configuration with sensible defaults.
// Provider credentials are left empty unless set; callers that need them
// (cmd/fetch) must call RequireProviderCreds.
func Load() *Config {
	return &Config{
		ProviderBaseURL:    getEnv("PROVIDER_BASE_URL", "https://api.histdata.example.com"),
		ProviderClientCode: os.Getenv("PROVIDER_CLIENT_CODE"),
		ProviderPassword:   os.Getenv("PROVIDER_PASSWORD"),
		ProviderTOTPSecret: os.Getenv("PROVIDER_TOTP_SECRET"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/bars.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		ServerAddr:    getEnv("SERVER_ADDR", ":8080"),
	}
}

// RequireProviderCreds aborts unless the provider credentials are all set.
func (c *Config) RequireProviderCreds() {
	if c.ProviderClientCode == "" || c.ProviderPassword == "" || c.ProviderTOTPSecret == "" {
		log.Fatal("[config] PROVIDER_CLIENT_CODE, PROVIDER_PASSWORD and PROVIDER_TOTP_SECRET must be set")
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
