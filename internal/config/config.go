/**
 * @description
 * This package handles the configuration management for the ledger-service. It
 * uses the Viper library to read configuration from environment variables (and
 * an optional .env file), providing a centralized and straightforward way to
 * manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	defaultSubscriptionFeeMinor = 500000 // 5000.00 in display units
	defaultStartingBalanceMinor = 250000 // 2500.00 in display units
	defaultPresenceTTLSeconds   = 120
	defaultPresenceKeyPrefix    = "presence"
	defaultSweepSchedule        = "@hourly"
)

// Config holds all the configuration variables for the ledger-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort           string `mapstructure:"SERVER_PORT"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	RedisURL             string `mapstructure:"REDIS_URL"`
	PresenceKeyPrefix    string `mapstructure:"PRESENCE_KEY_PREFIX"`
	PresenceTTLSeconds   int    `mapstructure:"PRESENCE_TTL_SECONDS"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`
	EventsExchange       string `mapstructure:"EVENTS_EXCHANGE"`
	AccountEventsQueue   string `mapstructure:"ACCOUNT_EVENTS_QUEUE"`
	JWKSURL              string `mapstructure:"JWKS_URL"`
	InternalAPIKey       string `mapstructure:"INTERNAL_API_KEY"`
	SubscriptionFeeMinor int64  `mapstructure:"SUBSCRIPTION_FEE_MINOR"`
	StartingBalanceMinor int64  `mapstructure:"STARTING_BALANCE_MINOR"`
	AllowedOrigins       string `mapstructure:"ALLOWED_ORIGINS"`
	SweepSchedule        string `mapstructure:"SWEEP_SCHEDULE"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8084")
	viper.SetDefault("PRESENCE_KEY_PREFIX", defaultPresenceKeyPrefix)
	viper.SetDefault("PRESENCE_TTL_SECONDS", defaultPresenceTTLSeconds)
	viper.SetDefault("EVENTS_EXCHANGE", "vendora.events")
	viper.SetDefault("ACCOUNT_EVENTS_QUEUE", "ledger-service.account-events")
	viper.SetDefault("SUBSCRIPTION_FEE_MINOR", defaultSubscriptionFeeMinor)
	viper.SetDefault("STARTING_BALANCE_MINOR", defaultStartingBalanceMinor)
	viper.SetDefault("SWEEP_SCHEDULE", defaultSweepSchedule)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("PRESENCE_KEY_PREFIX")
	_ = viper.BindEnv("PRESENCE_TTL_SECONDS")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENTS_EXCHANGE")
	_ = viper.BindEnv("ACCOUNT_EVENTS_QUEUE")
	_ = viper.BindEnv("JWKS_URL")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "LEDGER_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("SUBSCRIPTION_FEE_MINOR")
	_ = viper.BindEnv("STARTING_BALANCE_MINOR")
	_ = viper.BindEnv("ALLOWED_ORIGINS")
	_ = viper.BindEnv("SWEEP_SCHEDULE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	// Platform-injected PORT wins over SERVER_PORT on container platforms.
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if strings.TrimSpace(config.InternalAPIKey) == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("LEDGER_SERVICE_INTERNAL_API_KEY"))
	}
	config.InternalAPIKey = strings.Trim(strings.TrimSpace(config.InternalAPIKey), "\"'")
	config.RedisURL = strings.TrimSpace(config.RedisURL)

	config.PresenceKeyPrefix = strings.TrimSpace(config.PresenceKeyPrefix)
	if config.PresenceKeyPrefix == "" {
		config.PresenceKeyPrefix = defaultPresenceKeyPrefix
	}
	if config.PresenceTTLSeconds <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive presence ttl configured; using default\" ttl_seconds=%d default=%d", config.PresenceTTLSeconds, defaultPresenceTTLSeconds)
		config.PresenceTTLSeconds = defaultPresenceTTLSeconds
	}

	if config.SubscriptionFeeMinor < 0 {
		log.Printf("level=warn component=config msg=\"negative subscription fee configured; using default\" fee_minor=%d default=%d", config.SubscriptionFeeMinor, defaultSubscriptionFeeMinor)
		config.SubscriptionFeeMinor = defaultSubscriptionFeeMinor
	}
	if config.StartingBalanceMinor < 0 {
		log.Printf("level=warn component=config msg=\"negative starting balance configured; coercing to zero\" balance_minor=%d", config.StartingBalanceMinor)
		config.StartingBalanceMinor = 0
	}

	if strings.TrimSpace(config.SweepSchedule) == "" {
		config.SweepSchedule = defaultSweepSchedule
	}

	return
}
