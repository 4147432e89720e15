package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	JWTSecret         string `mapstructure:"JWT_SECRET"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// MongoDB (booking transition audit trail).
	DatabaseURL  string `mapstructure:"DATABASE_URL"`
	DatabaseName string `mapstructure:"DATABASE_NAME"`

	// Redis configuration.
	RedisAddr    string `mapstructure:"REDIS_ADDR"`
	RedisPasswd  string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB int    `mapstructure:"REDIS_CACHE_DB"`
	RedisQueueDB int    `mapstructure:"REDIS_QUEUE_DB"`

	// Upstream hospital API (the polled collaborator).
	UpstreamBaseURL string `mapstructure:"UPSTREAM_BASE_URL"`
	UpstreamToken   string `mapstructure:"UPSTREAM_TOKEN"`

	// Polling intervals, in milliseconds.
	ResourcePollMs  int `mapstructure:"RESOURCE_POLL_MS"`
	BookingPollMs   int `mapstructure:"BOOKING_POLL_MS"`
	DashboardPollMs int `mapstructure:"DASHBOARD_POLL_MS"`
	MaxPollMs       int `mapstructure:"MAX_POLL_MS"`

	// Resync sweep schedule (cron expression).
	ResyncSpec string `mapstructure:"RESYNC_SPEC"`

	// Stripe secret key for deposit intents.
	StripeKey string `mapstructure:"STRIPE_KEY"`

	// Firebase service account for decision pushes.
	FirebaseCredentialsPath string `mapstructure:"FIREBASE_CREDENTIALS_PATH"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("DATABASE_NAME", "rapidcare")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_QUEUE_DB", 1)
	viper.SetDefault("UPSTREAM_BASE_URL", "http://localhost:5000/api")
	viper.SetDefault("UPSTREAM_TOKEN", "")
	viper.SetDefault("RESOURCE_POLL_MS", 30000)
	viper.SetDefault("BOOKING_POLL_MS", 15000)
	viper.SetDefault("DASHBOARD_POLL_MS", 60000)
	viper.SetDefault("MAX_POLL_MS", 300000)
	viper.SetDefault("RESYNC_SPEC", "@every 5m")
	viper.SetDefault("STRIPE_KEY", "")
	viper.SetDefault("FIREBASE_CREDENTIALS_PATH", "")

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}

// ResourcePollInterval returns the configured resource poll interval.
func ResourcePollInterval() time.Duration {
	return time.Duration(AppConfig.ResourcePollMs) * time.Millisecond
}

// BookingPollInterval returns the configured booking poll interval.
func BookingPollInterval() time.Duration {
	return time.Duration(AppConfig.BookingPollMs) * time.Millisecond
}

// DashboardPollInterval returns the configured dashboard poll interval.
func DashboardPollInterval() time.Duration {
	return time.Duration(AppConfig.DashboardPollMs) * time.Millisecond
}

// MaxPollInterval returns the backoff ceiling for failing sessions.
func MaxPollInterval() time.Duration {
	return time.Duration(AppConfig.MaxPollMs) * time.Millisecond
}
