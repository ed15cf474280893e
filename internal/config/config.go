package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	SinkDriverHTTP = "http"
	SinkDriverS3   = "s3"
)

type Config struct {
	ListenAddr string

	BotToken    string
	TelegramAPI string

	SinkDriver   string
	SinkBaseURL  string
	SinkAuthCode string

	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string
	S3PublicBaseURL string

	MaxFileSize     int64
	DownloadTimeout time.Duration
	UploadTimeout   time.Duration

	AdminIDs    []int64
	ErrorChatID int64

	RateLimit       int
	RateLimitWindow time.Duration

	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     string
	PostgresDatabase string
	PostgresSSLMode  string
}

func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:       getEnv("LISTEN_ADDR", ":8080"),
		BotToken:         os.Getenv("BOT_TOKEN"),
		TelegramAPI:      getEnv("TELEGRAM_API", "https://api.telegram.org"),
		SinkDriver:       getEnv("SINK_DRIVER", SinkDriverHTTP),
		SinkBaseURL:      os.Getenv("SINK_BASE_URL"),
		SinkAuthCode:     os.Getenv("SINK_AUTH_CODE"),
		S3Bucket:         getEnv("S3_BUCKET", "filebed"),
		S3Region:         getEnv("AWS_REGION", "us-east-1"),
		S3Endpoint:       os.Getenv("S3_ENDPOINT"),
		S3AccessKey:      os.Getenv("AWS_ACCESS_KEY_ID"),
		S3SecretKey:      os.Getenv("AWS_SECRET_ACCESS_KEY"),
		S3PublicBaseURL:  os.Getenv("S3_PUBLIC_BASE_URL"),
		MaxFileSize:      getEnvInt64("MAX_FILE_SIZE", 20*1024*1024),
		DownloadTimeout:  getEnvDuration("DOWNLOAD_TIMEOUT", 2*time.Minute),
		UploadTimeout:    getEnvDuration("UPLOAD_TIMEOUT", 3*time.Minute),
		AdminIDs:         parseIDList(os.Getenv("ADMIN_IDS")),
		ErrorChatID:      getEnvInt64("ERROR_CHAT_ID", 0),
		RateLimit:        getEnvInt("RATE_LIMIT", 100),
		RateLimitWindow:  getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		PostgresUser:     getEnv("POSTGRES_USER", "filebed"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "password"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDatabase: getEnv("POSTGRES_DATABASE", "filebed_relay"),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("missing required environment variable BOT_TOKEN")
	}

	switch cfg.SinkDriver {
	case SinkDriverHTTP:
		if cfg.SinkBaseURL == "" {
			return nil, fmt.Errorf("missing required environment variable SINK_BASE_URL")
		}
	case SinkDriverS3:
		if cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
			return nil, fmt.Errorf("S3 sink requires AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY")
		}
	default:
		return nil, fmt.Errorf("unknown SINK_DRIVER %q", cfg.SinkDriver)
	}

	if cfg.MaxFileSize <= 0 {
		return nil, fmt.Errorf("MAX_FILE_SIZE must be positive")
	}

	return cfg, nil
}

// LedgerEnabled reports whether a Postgres binding was configured. Without
// one the service falls back to an in-memory ledger that does not survive
// restarts.
func (c *Config) LedgerEnabled() bool {
	return c.PostgresHost != ""
}

func (c *Config) IsAdmin(id int64) bool {
	for _, admin := range c.AdminIDs {
		if admin == id {
			return true
		}
	}
	return false
}

func parseIDList(value string) []int64 {
	if value == "" {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseInt(part, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
