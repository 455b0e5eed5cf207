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

type Config struct {
	Port               string
	DBUrl              string
	JWTSecret          string
	AppEnv             string
	BookingTimezone    string
	SweepInterval      time.Duration
	PaymentSecretKey   string
	PaymentProductCode string
	PaymentSuccessURL  string
	PaymentFailureURL  string
	AmqpURL            string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	jwtSecret, exists := os.LookupEnv("JWT_SECRET")
	if !exists || jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	paymentSecret, exists := os.LookupEnv("PAYMENT_SECRET_KEY")
	if !exists || paymentSecret == "" {
		return nil, fmt.Errorf("PAYMENT_SECRET_KEY is required")
	}

	return &Config{
		Port:               getEnv("PORT", "8080"),
		DBUrl:              getEnv("DB_URL", ""),
		JWTSecret:          jwtSecret,
		AppEnv:             normalizeEnv(getEnv("APP_ENV", "production")),
		BookingTimezone:    getEnv("BOOKING_TIMEZONE", "UTC"),
		SweepInterval:      getEnvDuration("SWEEP_INTERVAL", time.Minute),
		PaymentSecretKey:   paymentSecret,
		PaymentProductCode: getEnv("PAYMENT_PRODUCT_CODE", "EPAYTEST"),
		PaymentSuccessURL:  getEnv("PAYMENT_SUCCESS_URL", ""),
		PaymentFailureURL:  getEnv("PAYMENT_FAILURE_URL", ""),
		AmqpURL:            getEnv("AMQP_URL", ""),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}

// Location resolves the single operating timezone slots are interpreted in.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.BookingTimezone)
}
