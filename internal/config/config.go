package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; only DATABASE_URL and BOT_TOKEN are
// required.
type Config struct {
	// Server
	HTTPPort        string
	PublicBaseURL   string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Database
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// Bot API
	BotAPIBaseURL string
	BotToken      string
	GroupChatID   int64
	BotTimeout    time.Duration

	// File storage
	UploadDir string

	// Delivery pipeline
	ScanInterval time.Duration
	PendingTTL   time.Duration
	TokenTTL     time.Duration

	// Outbound queue cadences and per-second dispatch caps
	AnnounceInterval time.Duration
	SendInterval     time.Duration
	AnnounceRate     int
	SendRate         int
}

func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	botToken := os.Getenv("BOT_TOKEN")
	if botToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN is required")
	}
	groupChatID, err := strconv.ParseInt(os.Getenv("GROUP_CHAT_ID"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("GROUP_CHAT_ID must be a chat id: %w", err)
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		PublicBaseURL:   getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL: dbURL,
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),

		BotAPIBaseURL: getEnv("BOT_API_BASE_URL", "https://api.telegram.org"),
		BotToken:      botToken,
		GroupChatID:   groupChatID,
		BotTimeout:    getDuration("BOT_TIMEOUT", 30*time.Second),

		UploadDir: getEnv("UPLOAD_DIR", "./uploads"),

		ScanInterval: getDuration("SCAN_INTERVAL", 15*time.Second),
		PendingTTL:   getDuration("PENDING_TTL", 120*time.Hour),
		TokenTTL:     getDuration("TOKEN_TTL", 48*time.Hour),

		AnnounceInterval: getDuration("ANNOUNCE_INTERVAL", 500*time.Millisecond),
		SendInterval:     getDuration("SEND_INTERVAL", time.Second),
		AnnounceRate:     getInt("ANNOUNCE_RATE", 10),
		SendRate:         getInt("SEND_RATE", 25),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
