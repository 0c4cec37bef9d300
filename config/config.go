package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"luckystake/database"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	// Database configuration. An empty DatabaseURL runs the ledger in memory.
	DatabaseURL  string
	DatabaseName string

	// HTTP API
	HTTPAddr  string
	JWTSecret string
	JWTExpiry time.Duration
	AdminKey  string // Required in the X-Admin-Key header for draw and accrual endpoints

	// Ledger behaviour
	AnnualYieldRate      decimal.Decimal
	PrizeHistoryLimit    int
	YieldAccrualSchedule string // cron expression
	PoolsFile            string // optional YAML pool catalog

	// NATS configuration
	NATSServers string // comma-separated; empty disables the bridge

	// Discord announcements
	DiscordToken             string
	DiscordAnnounceChannelID string

	LogLevel    string
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL combines the base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// UsesMemoryStore reports whether the ledger runs without PostgreSQL
func (c *Config) UsesMemoryStore() bool {
	return strings.TrimSpace(c.DatabaseURL) == ""
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func load() (*Config, error) {
	config := &Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		HTTPAddr:  getEnvWithDefault("HTTP_ADDR", ":8080"),
		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTExpiry: 7 * 24 * time.Hour,
		AdminKey:  os.Getenv("ADMIN_KEY"),

		AnnualYieldRate:      decimal.RequireFromString("0.05"),
		PrizeHistoryLimit:    50,
		YieldAccrualSchedule: getEnvWithDefault("YIELD_ACCRUAL_SCHEDULE", "@daily"),
		PoolsFile:            os.Getenv("POOLS_FILE"),

		NATSServers: os.Getenv("NATS_SERVERS"),

		DiscordToken:             os.Getenv("DISCORD_TOKEN"),
		DiscordAnnounceChannelID: os.Getenv("DISCORD_ANNOUNCE_CHANNEL_ID"),

		LogLevel:    getEnvWithDefault("LOG_LEVEL", "info"),
		Environment: getEnvWithDefault("ENVIRONMENT", "development"),
	}

	if expiry := os.Getenv("JWT_EXPIRY"); expiry != "" {
		parsed, err := time.ParseDuration(expiry)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("invalid JWT_EXPIRY %q", expiry)
		}
		config.JWTExpiry = parsed
	}
	if rate := os.Getenv("ANNUAL_YIELD_RATE"); rate != "" {
		parsed, err := decimal.NewFromString(rate)
		if err != nil || !parsed.IsPositive() {
			return nil, fmt.Errorf("invalid ANNUAL_YIELD_RATE %q", rate)
		}
		config.AnnualYieldRate = parsed
	}
	if limit := os.Getenv("PRIZE_HISTORY_LIMIT"); limit != "" {
		parsed, err := strconv.Atoi(limit)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("invalid PRIZE_HISTORY_LIMIT %q", limit)
		}
		config.PrizeHistoryLimit = parsed
	}

	if config.Environment != "test" {
		if config.JWTSecret == "" {
			return nil, fmt.Errorf("JWT_SECRET is required")
		}
		if config.AdminKey == "" {
			return nil, fmt.Errorf("ADMIN_KEY is required")
		}
		if config.DiscordToken != "" && config.DiscordAnnounceChannelID == "" {
			return nil, fmt.Errorf("DISCORD_ANNOUNCE_CHANNEL_ID is required when DISCORD_TOKEN is set")
		}
	}

	return config, nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		HTTPAddr:             ":0",
		JWTSecret:            "test-secret",
		JWTExpiry:            time.Hour,
		AdminKey:             "test-admin-key",
		AnnualYieldRate:      decimal.RequireFromString("0.05"),
		PrizeHistoryLimit:    50,
		YieldAccrualSchedule: "@daily",
		LogLevel:             "debug",
		Environment:          "test",
	}
}
