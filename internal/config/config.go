// Package config provides environment configuration for the gateway.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// Upstream backend
	BackendURL string

	// Gateway origin the assistant client talks to
	GatewayURL string

	// Per-tier timeout budgets
	HealthTimeout  time.Duration
	DefaultTimeout time.Duration
	ChatTimeout    time.Duration
	ConnectTimeout time.Duration

	// NATS settings (optional event bus)
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// JWT settings
	AuthEnabled bool
	JWTSecret   string

	// Rate limiting
	RateLimitRequests int
	ChatRateLimit     int
	RateLimitWindow   time.Duration

	// Client conversation store
	StorePath      string
	StoreNamespace string

	// Auto-regenerate background worker
	AutoRegenerate bool

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 0), // 0: streaming routes manage their own budgets

		// Upstream. BACKEND_BASE_URL is an accepted alias.
		BackendURL: strings.TrimRight(getEnv("BACKEND_URL", getEnv("BACKEND_BASE_URL", "http://localhost:8000")), "/"),

		// Gateway (client side)
		GatewayURL: strings.TrimRight(getEnv("GATEWAY_URL", "http://localhost:8080"), "/"),

		// Timeout tiers
		HealthTimeout:  getDurationEnv("HEALTH_TIMEOUT", 10*time.Second),
		DefaultTimeout: getDurationEnv("DEFAULT_TIMEOUT", 30*time.Second),
		ChatTimeout:    getDurationEnv("CHAT_TIMEOUT", 300*time.Second),
		ConnectTimeout: getDurationEnv("CONNECT_TIMEOUT", 5*time.Second),

		// NATS
		NATSURL:      getEnv("NATS_URL", ""),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// JWT
		AuthEnabled: getBoolEnv("AUTH_ENABLED", false),
		JWTSecret:   getEnv("JWT_SECRET", ""),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 120),
		ChatRateLimit:     getIntEnv("CHAT_RATE_LIMIT", 20),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Conversation store
		StorePath:      getEnv("STORE_PATH", "./data/conversations"),
		StoreNamespace: getEnv("STORE_NAMESPACE", "assistant"),

		// Auto-regenerate
		AutoRegenerate: getBoolEnv("AUTO_REGENERATE", false),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
