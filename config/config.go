package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabasePath   string
	Timezone       *time.Location
	PollSpec       string
	ClientID       string
	HTTPTimeout    time.Duration
	TelegramToken  string
	TelegramChatID int64
	LogFile        string
	ServerPort     string
	APIUsername    string
	APIPassword    string
}

func Load() (*Config, error) {
	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/tasksync.db"
	}

	tzName := os.Getenv("TIMEZONE")
	if tzName == "" {
		tzName = "UTC"
	}
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	pollSpec := os.Getenv("POLL_SPEC")
	if pollSpec == "" {
		pollSpec = "*/5 * * * *"
	}

	clientID := os.Getenv("CLIENT_ID")
	if clientID == "" {
		clientID = "TaskSync"
	}

	timeout := 30 * time.Second
	if v := os.Getenv("HTTP_TIMEOUT"); v != "" {
		timeout, err = time.ParseDuration(v)
		if err != nil || timeout <= 0 {
			return nil, fmt.Errorf("HTTP_TIMEOUT must be a positive duration like 30s")
		}
	}

	var chatID int64
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token != "" {
		chatID, err = strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_CHAT_ID is required with TELEGRAM_BOT_TOKEN and must be a number")
		}
	}

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	return &Config{
		DatabasePath:   dbPath,
		Timezone:       tz,
		PollSpec:       pollSpec,
		ClientID:       clientID,
		HTTPTimeout:    timeout,
		TelegramToken:  token,
		TelegramChatID: chatID,
		LogFile:        os.Getenv("LOG_FILE"),
		ServerPort:     port,
		APIUsername:    os.Getenv("API_USERNAME"),
		APIPassword:    os.Getenv("API_PASSWORD"),
	}, nil
}

// TelegramEnabled reports whether notifications should also go to Telegram
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}
