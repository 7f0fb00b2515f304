package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerPort string
	ServerHost string

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost           string
	RedisPort           string
	RedisPassword       string
	RedisDB             int
	NotificationChannel string

	// Kafka
	KafkaBrokers []string
	KafkaGroupID string

	// Gateway (fiscal authority submission service)
	GatewayBaseURL      string
	GatewayTokenURL     string
	GatewayClientID     string
	GatewayClientSecret string
	GatewayStaticToken  string
	CreateTimeout       time.Duration
	QueryTimeout        time.Duration

	// Pipeline
	DetectorInterval time.Duration
	PollInterval     time.Duration
	PollMaxAttempts  int
	WorkerCount      int
	FamilyCatalog    string
}

func Load() *Config {
	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		ServerHost: getEnv("SERVER_HOST", "0.0.0.0"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "fiscalflow"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "fiscalflow123"),
		PostgresDB:       getEnv("POSTGRES_DB", "fiscalflow"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:           getEnv("REDIS_HOST", "localhost"),
		RedisPort:           getEnv("REDIS_PORT", "6379"),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             getIntEnv("REDIS_DB", 0),
		NotificationChannel: getEnv("NOTIFICATION_CHANNEL", "document-completed"),

		KafkaBrokers: getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "fiscalflow-pipeline"),

		GatewayBaseURL:      getEnv("GATEWAY_BASE_URL", "https://api.sunat.gob.pe/v1"),
		GatewayTokenURL:     getEnv("GATEWAY_TOKEN_URL", ""),
		GatewayClientID:     getEnv("GATEWAY_CLIENT_ID", ""),
		GatewayClientSecret: getEnv("GATEWAY_CLIENT_SECRET", ""),
		GatewayStaticToken:  getEnv("GATEWAY_STATIC_TOKEN", ""),
		CreateTimeout:       getDuration("GATEWAY_CREATE_TIMEOUT", 30*time.Second),
		QueryTimeout:        getDuration("GATEWAY_QUERY_TIMEOUT", 15*time.Second),

		DetectorInterval: getDuration("DETECTOR_INTERVAL", 30*time.Second),
		PollInterval:     getDuration("POLL_INTERVAL", 30*time.Second),
		PollMaxAttempts:  getIntEnv("POLL_MAX_ATTEMPTS", 720),
		WorkerCount:      getIntEnv("WORKER_COUNT", 4),
		FamilyCatalog:    getEnv("FAMILY_CATALOG", ""),
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
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
