package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Пределы и значения по умолчанию.
const (
	DefaultCaptureInterval        = 1500 * time.Millisecond
	MinCaptureInterval            = 500 * time.Millisecond
	MaxCaptureInterval            = 3 * time.Second
	DefaultBoardRefreshInterval   = time.Second
	MinBoardRefreshInterval       = 100 * time.Millisecond
	MaxBoardRefreshInterval       = 30 * time.Second
	DefaultLowConfidenceThreshold = 0.58
	DefaultModelWorker            = "python3 -u python/square_worker.py"
)

type Config struct {
	CaptureInterval        time.Duration
	BoardRefreshInterval   time.Duration
	LowConfidenceThreshold float64
	ForceFlip              bool

	ModelPath   string
	ModelWorker string
	ModelURL    string

	VideoSource string
	DatabaseURL string

	TelegramToken  string
	TelegramChatID int64
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := &Config{
		ModelPath:     os.Getenv("MODEL_PATH"),
		ModelWorker:   envOr("MODEL_WORKER", DefaultModelWorker),
		ModelURL:      os.Getenv("MODEL_URL"),
		VideoSource:   os.Getenv("VIDEO_SOURCE"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
	}

	var err error
	if cfg.CaptureInterval, err = durationEnv("CAPTURE_INTERVAL", DefaultCaptureInterval); err != nil {
		return nil, err
	}
	if cfg.BoardRefreshInterval, err = durationEnv("BOARD_REFRESH_INTERVAL", DefaultBoardRefreshInterval); err != nil {
		return nil, err
	}
	if cfg.LowConfidenceThreshold, err = floatEnv("LOW_CONFIDENCE_THRESHOLD", DefaultLowConfidenceThreshold); err != nil {
		return nil, err
	}
	if cfg.ForceFlip, err = boolEnv("FORCE_FLIP", false); err != nil {
		return nil, err
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if cfg.TelegramChatID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
	}

	cfg.clamp()
	return cfg, nil
}

// clamp приводит значения к безопасным диапазонам.
func (c *Config) clamp() {
	c.CaptureInterval = min(max(c.CaptureInterval, MinCaptureInterval), MaxCaptureInterval)
	c.BoardRefreshInterval = min(max(c.BoardRefreshInterval, MinBoardRefreshInterval), MaxBoardRefreshInterval)
	c.LowConfidenceThreshold = min(max(c.LowConfidenceThreshold, 0), 1)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func floatEnv(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if math.IsNaN(f) {
		return 0, fmt.Errorf("%s: not a number", key)
	}
	return f, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
