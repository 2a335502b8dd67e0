package app

import (
	"errors"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer          string        // Required: issuer claim for tokens
	TokenSecret     string        // Required: HMAC signing secret (min 32 bytes)
	TokenTTL        time.Duration // Optional: token and session lifetime (default: 24h)
	FingerprintMode string        // Optional: device binding granularity (ip_ua, ua, off) (default: ip_ua)

	DatabaseFile string // Optional: path to SQLite database file (default: ./auth.db)
	PepperFile   string // Optional: path to file containing pepper for password hashing (default: ./pepper)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
	SecurityLogRetention time.Duration // How long security events are kept (default: 30 days)
}

func LoadConfig() Config {
	return Config{
		Issuer:          getEnvOrDefault("AUTH_ISSUER", "taskdeck-auth"),
		TokenSecret:     os.Getenv("AUTH_TOKEN_SECRET"),
		TokenTTL:        getEnvDurationOrDefault("AUTH_TOKEN_TTL", 24*time.Hour),
		FingerprintMode: getEnvOrDefault("AUTH_FINGERPRINT_MODE", "ip_ua"),

		DatabaseFile: getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		PepperFile:   getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
		SecurityLogRetention: getEnvDurationOrDefault("SECURITY_LOG_RETENTION", 30*24*time.Hour),
	}
}

// Validate checks the parts of the config that have no workable default.
func (c Config) Validate() error {
	if c.TokenSecret == "" {
		return errors.New("AUTH_TOKEN_SECRET must be set")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
