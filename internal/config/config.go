// Package config loads runtime configuration from the environment.
// A .env file in the working directory is honored when present.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the trader.
type Config struct {
	// Process
	Env      string
	Port     int
	LogLevel string
	Pretty   bool
	DataDir  string

	// Risk parameters
	MaxDrawdown         float64 // fraction, e.g. 0.1
	InitialBalance      float64 // quote currency
	PositionSizePercent float64 // fraction of portfolio value per trade
	EmergencyThreshold  float64 // drawdown fraction that trips SAFETY mode

	// Portfolio parameters
	MaxAssetPercent float64 // per-asset share cap, fraction
	StableSymbol    string
	TopPairs        int
	MinConfidence   float64

	// Scheduling
	TradeCycleSpec   string // cron spec for the trade cycle
	RebalanceWeekday int    // 0=Sunday ... 6=Saturday
	RebalanceHour    int
	SnapshotTTLHours int

	// Bybit
	BybitAPIKey    string
	BybitAPISecret string
	BybitTestnet   bool

	// OpenAI
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAITemperature float64
	OpenAIMaxTokens   int

	// Telegram
	TelegramBotToken string
	TelegramChatID   string

	// Backups (S3-compatible storage)
	BackupEnabled   bool
	BackupSpec      string
	BackupEndpoint  string
	BackupBucket    string
	BackupAccessKey string
	BackupSecretKey string
	BackupKeep      int
}

// Load reads configuration from the environment, applying defaults.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments use actual env vars.
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("APP_ENV", "production"),
		Port:     getEnvAsInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Pretty:   getEnvAsBool("LOG_PRETTY", false),
		DataDir:  getEnv("DATA_DIR", "./data"),

		MaxDrawdown:         getEnvAsFloat("MAX_DRAWDOWN", 0.1),
		InitialBalance:      getEnvAsFloat("INITIAL_BALANCE", 50),
		PositionSizePercent: getEnvAsFloat("POSITION_SIZE_PERCENT", 0.02),
		EmergencyThreshold:  getEnvAsFloat("EMERGENCY_THRESHOLD", 0.08),

		MaxAssetPercent: getEnvAsFloat("MAX_ASSET_PERCENT", 0.2),
		StableSymbol:    getEnv("STABLE_SYMBOL", "USDT"),
		TopPairs:        getEnvAsInt("TOP_PAIRS", 3),
		MinConfidence:   getEnvAsFloat("MIN_CONFIDENCE", 0.7),

		TradeCycleSpec:   getEnv("TRADE_CYCLE_SPEC", "@every 15m"),
		RebalanceWeekday: getEnvAsInt("REBALANCE_WEEKDAY", 1),
		RebalanceHour:    getEnvAsInt("REBALANCE_HOUR", 8),
		SnapshotTTLHours: getEnvAsInt("SNAPSHOT_TTL_HOURS", 72),

		BybitAPIKey:    getEnv("BYBIT_API_KEY", ""),
		BybitAPISecret: getEnv("BYBIT_API_SECRET", ""),
		BybitTestnet:   getEnvAsBool("BYBIT_TESTNET", true),

		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAITemperature: getEnvAsFloat("OPENAI_TEMPERATURE", 0.2),
		OpenAIMaxTokens:   getEnvAsInt("OPENAI_MAX_TOKENS", 256),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),

		BackupEnabled:   getEnvAsBool("BACKUP_ENABLED", false),
		BackupSpec:      getEnv("BACKUP_SPEC", "@daily"),
		BackupEndpoint:  getEnv("BACKUP_S3_ENDPOINT", ""),
		BackupBucket:    getEnv("BACKUP_S3_BUCKET", ""),
		BackupAccessKey: getEnv("BACKUP_S3_ACCESS_KEY", ""),
		BackupSecretKey: getEnv("BACKUP_S3_SECRET_KEY", ""),
		BackupKeep:      getEnvAsInt("BACKUP_KEEP", 7),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the risk layer cannot operate under.
func (c *Config) Validate() error {
	if c.InitialBalance <= 0 {
		return fmt.Errorf("INITIAL_BALANCE must be positive, got %v", c.InitialBalance)
	}
	if c.MaxAssetPercent <= 0 || c.MaxAssetPercent > 1 {
		return fmt.Errorf("MAX_ASSET_PERCENT must be in (0, 1], got %v", c.MaxAssetPercent)
	}
	if c.EmergencyThreshold <= 0 || c.EmergencyThreshold > 1 {
		return fmt.Errorf("EMERGENCY_THRESHOLD must be in (0, 1], got %v", c.EmergencyThreshold)
	}
	if c.PositionSizePercent <= 0 || c.PositionSizePercent > 1 {
		return fmt.Errorf("POSITION_SIZE_PERCENT must be in (0, 1], got %v", c.PositionSizePercent)
	}
	if c.StableSymbol == "" {
		return fmt.Errorf("STABLE_SYMBOL must not be empty")
	}
	if c.RebalanceWeekday < 0 || c.RebalanceWeekday > 6 {
		return fmt.Errorf("REBALANCE_WEEKDAY must be in [0, 6], got %d", c.RebalanceWeekday)
	}
	if c.RebalanceHour < 0 || c.RebalanceHour > 23 {
		return fmt.Errorf("REBALANCE_HOUR must be in [0, 23], got %d", c.RebalanceHour)
	}
	if c.BackupEnabled {
		if c.BackupEndpoint == "" || c.BackupBucket == "" {
			return fmt.Errorf("backups enabled but BACKUP_S3_ENDPOINT or BACKUP_S3_BUCKET is empty")
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
