package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// CORS configuration
	CORS CORSConfig

	// Payment processor configuration
	Payment PaymentConfig

	// Notification configuration
	Notification NotificationConfig

	// Booking configuration
	Booking BookingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// PaymentConfig holds payment processor configuration
type PaymentConfig struct {
	BaseURL       string // processor API base URL
	SecretKey     string // processor API key (SECRET - never expose to client)
	WebhookSecret string // shared secret for webhook signature checks
	Currency      string // ISO currency code charged for bookings
}

// NotificationConfig holds the outbound notification gateway configuration
type NotificationConfig struct {
	Mode      string // "dev" logs instead of sending, "production" calls the gateway
	APIURL    string
	APIKey    string
	FromEmail string
}

// BookingConfig holds booking engine configuration
type BookingConfig struct {
	DefaultWindowDays int // booking window when a tour does not set its own
	ReferenceAttempts int // retries for booking reference collisions
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Payment: PaymentConfig{
			BaseURL:       getEnv("PAYMENT_API_URL", "https://api.payments.example.com/v1"),
			SecretKey:     getEnv("PAYMENT_SECRET_KEY", ""),
			WebhookSecret: getEnv("PAYMENT_WEBHOOK_SECRET", ""),
			Currency:      getEnv("PAYMENT_CURRENCY", "USD"),
		},
		Notification: NotificationConfig{
			Mode:      getEnv("NOTIFICATION_MODE", "dev"), // "dev" or "production"
			APIURL:    getEnv("NOTIFICATION_API_URL", ""),
			APIKey:    getEnv("NOTIFICATION_API_KEY", ""),
			FromEmail: getEnv("NOTIFICATION_FROM_EMAIL", "bookings@islandtours.example"),
		},
		Booking: BookingConfig{
			DefaultWindowDays: getEnvAsInt("BOOKING_DEFAULT_WINDOW_DAYS", 90),
			ReferenceAttempts: getEnvAsInt("BOOKING_REFERENCE_ATTEMPTS", 5),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Payment.SecretKey == "" {
		return fmt.Errorf("PAYMENT_SECRET_KEY is required")
	}

	// Validate notification gateway only in production mode
	if c.Notification.Mode == "production" {
		if c.Notification.APIURL == "" {
			return fmt.Errorf("NOTIFICATION_API_URL is required in production mode")
		}
		if c.Notification.APIKey == "" {
			return fmt.Errorf("NOTIFICATION_API_KEY is required in production mode")
		}
	}

	if c.Booking.ReferenceAttempts <= 0 {
		return fmt.Errorf("BOOKING_REFERENCE_ATTEMPTS must be greater than 0")
	}

	return nil
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
