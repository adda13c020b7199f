package config

import (
	"crypto/rsa"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the Vitals Service
type Config struct {
	// JWT configuration - public key from the identity provider
	JWTPublicKey *rsa.PublicKey

	// Database configuration; empty selects the in-memory store
	DatabaseURL  string
	DBMaxRetries int

	// RabbitMQ configuration; empty disables the alert publisher and reading consumer
	RabbitMQURL       string
	AlertsQueueName   string
	ReadingsQueueName string

	// Redis configuration; empty disables cross-replica fan-out
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// MQTT configuration; empty broker disables device ingest
	MQTTBrokerURL string
	MQTTClientID  string
	MQTTUsername  string
	MQTTPassword  string
	MQTTTopic     string

	// Intake configuration
	IntakeTimeout       time.Duration
	IntakeRatePerMinute int
	IntakeBurst         int

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogFile   string

	// Server configuration
	Port string

	// Circuit breaker configuration
	CircuitBreakerMaxRequests uint32
	CircuitBreakerInterval    time.Duration
	CircuitBreakerTimeout     time.Duration
}

// Load reads configuration from environment variables, after an optional .env file.
// Public key is loaded from /etc/identity/public.pem (mounted via ConfigMap) unless PUBLIC_KEY_PATH is set.
func Load() (*Config, error) {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	publicKeyPath := getEnv("PUBLIC_KEY_PATH", "/etc/identity/public.pem")
	publicKey, err := loadPublicKey(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load public key from %s: %w", publicKeyPath, err)
	}

	cfg := &Config{
		JWTPublicKey:      publicKey,
		DatabaseURL:       os.Getenv("DB_CONNECTION_STRING"),
		RabbitMQURL:       os.Getenv("RABBITMQ_URL"),
		AlertsQueueName:   getEnv("ALERTS_QUEUE_NAME", "vitals_alerts"),
		ReadingsQueueName: getEnv("READINGS_QUEUE_NAME", "vitals_readings"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		MQTTBrokerURL:     os.Getenv("MQTT_BROKER_URL"),
		MQTTClientID:      getEnv("MQTT_CLIENT_ID", "vitals-service"),
		MQTTUsername:      os.Getenv("MQTT_USERNAME"),
		MQTTPassword:      os.Getenv("MQTT_PASSWORD"),
		MQTTTopic:         getEnv("MQTT_TOPIC", "mamamind/+/readings"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "json"),
		LogFile:           os.Getenv("LOG_FILE"),
		Port:              getEnv("PORT", "8080"),
	}

	if err := cfg.loadNumbers(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadNumbers() error {
	var err error

	if c.DBMaxRetries, err = getEnvInt("DB_MAX_RETRIES", 5); err != nil {
		return err
	}
	if c.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return err
	}
	if c.IntakeRatePerMinute, err = getEnvInt("INTAKE_RATE_PER_MINUTE", 60); err != nil {
		return err
	}
	if c.IntakeBurst, err = getEnvInt("INTAKE_BURST", 10); err != nil {
		return err
	}
	if c.IntakeTimeout, err = getEnvDuration("INTAKE_TIMEOUT", 5*time.Second); err != nil {
		return err
	}

	// Circuit breaker settings (optional, with defaults)
	maxRequests, err := getEnvInt("CIRCUIT_BREAKER_MAX_REQUESTS", 5)
	if err != nil {
		return err
	}
	if maxRequests < 1 {
		return fmt.Errorf("CIRCUIT_BREAKER_MAX_REQUESTS must be positive, got %d", maxRequests)
	}
	c.CircuitBreakerMaxRequests = uint32(maxRequests)
	if c.CircuitBreakerInterval, err = getEnvDuration("CIRCUIT_BREAKER_INTERVAL", 60*time.Second); err != nil {
		return err
	}
	if c.CircuitBreakerTimeout, err = getEnvDuration("CIRCUIT_BREAKER_TIMEOUT", 30*time.Second); err != nil {
		return err
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return v, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, raw)
	}
	return d, nil
}

// loadPublicKey loads an RSA public key from a PEM file
func loadPublicKey(path string) (*rsa.PublicKey, error) {
	keyData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(keyData)
	if err != nil {
		return nil, err
	}
	return publicKey, nil
}
