package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServerAddr string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	JWTSecret       string
	FrontendBaseURL string
	ResetTokenTTL   time.Duration

	// SendGrid configuration
	SendGridAPIKey  string
	EmailSender     string
	EmailSenderName string

	RedisAddr string

	// MinIO/S3 configuration for profile photos
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	CORSAllowedOrigins []string
	LogLevel           string
}

func Load() *Config {
	resetTTL, err := time.ParseDuration(getEnvOrDefault("RESET_TOKEN_TTL", "24h"))
	if err != nil || resetTTL <= 0 {
		resetTTL = 24 * time.Hour
	}

	minioUseSSL, _ := strconv.ParseBool(getEnvOrDefault("MINIO_USE_SSL", "false"))

	return &Config{
		ServerAddr:         getEnvOrDefault("SERVER_ADDR", ":8080"),
		DBHost:             getEnvOrDefault("DB_HOST", "localhost"),
		DBPort:             getEnvOrDefault("DB_PORT", "5432"),
		DBUser:             getEnvOrDefault("DB_USER", "bamina"),
		DBPassword:         getEnvOrDefault("DB_PASSWORD", "bamina_dev_password"),
		DBName:             getEnvOrDefault("DB_NAME", "bamina_accounts"),
		JWTSecret:          getEnvOrDefault("JWT_SECRET", generateDefaultSecret()),
		FrontendBaseURL:    getEnvOrDefault("FRONTEND_BASE_URL", "http://localhost:3000"),
		ResetTokenTTL:      resetTTL,
		SendGridAPIKey:     os.Getenv("SENDGRID_API_KEY"),
		EmailSender:        getEnvOrDefault("EMAIL_SENDER", "no-reply@bamina.shop"),
		EmailSenderName:    getEnvOrDefault("EMAIL_SENDER_NAME", "Bamina Online Shopping Store"),
		RedisAddr:          getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		MinioEndpoint:      getEnvOrDefault("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey:     getEnvOrDefault("MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey:     getEnvOrDefault("MINIO_SECRET_KEY", "minioadmin"),
		MinioBucket:        getEnvOrDefault("MINIO_BUCKET", "profile-photos"),
		MinioUseSSL:        minioUseSSL,
		CORSAllowedOrigins: splitAndTrim(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func generateDefaultSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "dev-secret-change-in-production"
	}
	return hex.EncodeToString(bytes)
}
