package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// clearEnv обнуляет переменные, чтобы окружение разработчика не влияло на тесты.
func clearEnv(t *testing.T) {
	for _, key := range []string{
		"CAPTURE_INTERVAL", "BOARD_REFRESH_INTERVAL", "LOW_CONFIDENCE_THRESHOLD", "FORCE_FLIP",
		"MODEL_PATH", "MODEL_WORKER", "MODEL_URL", "VIDEO_SOURCE", "DATABASE_URL",
		"TELEGRAM_TOKEN", "TELEGRAM_CHAT_ID",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DefaultCaptureInterval, cfg.CaptureInterval)
	require.Equal(t, DefaultBoardRefreshInterval, cfg.BoardRefreshInterval)
	require.Equal(t, DefaultLowConfidenceThreshold, cfg.LowConfidenceThreshold)
	require.False(t, cfg.ForceFlip)
	require.Equal(t, DefaultModelWorker, cfg.ModelWorker)
	require.Zero(t, cfg.TelegramChatID)
}

func TestLoad_ParsesValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("CAPTURE_INTERVAL", "2s")
	t.Setenv("BOARD_REFRESH_INTERVAL", "250ms")
	t.Setenv("LOW_CONFIDENCE_THRESHOLD", "0.7")
	t.Setenv("FORCE_FLIP", "true")
	t.Setenv("MODEL_URL", "localhost:8765")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 2*time.Second, cfg.CaptureInterval)
	require.Equal(t, 250*time.Millisecond, cfg.BoardRefreshInterval)
	require.Equal(t, 0.7, cfg.LowConfidenceThreshold)
	require.True(t, cfg.ForceFlip)
	require.Equal(t, "localhost:8765", cfg.ModelURL)
	require.Equal(t, int64(-100123), cfg.TelegramChatID)
}

func TestLoad_ClampsOutOfRange(t *testing.T) {
	clearEnv(t)
	t.Setenv("CAPTURE_INTERVAL", "100ms")
	t.Setenv("BOARD_REFRESH_INTERVAL", "5m")
	t.Setenv("LOW_CONFIDENCE_THRESHOLD", "1.5")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, MinCaptureInterval, cfg.CaptureInterval)
	require.Equal(t, MaxBoardRefreshInterval, cfg.BoardRefreshInterval)
	require.Equal(t, 1.0, cfg.LowConfidenceThreshold)

	t.Setenv("CAPTURE_INTERVAL", "10s")
	t.Setenv("LOW_CONFIDENCE_THRESHOLD", "-0.2")
	cfg, err = Load()
	require.NoError(t, err)
	require.Equal(t, MaxCaptureInterval, cfg.CaptureInterval)
	require.Zero(t, cfg.LowConfidenceThreshold)
}

func TestLoad_RejectsGarbage(t *testing.T) {
	for key, value := range map[string]string{
		"CAPTURE_INTERVAL":         "fast",
		"BOARD_REFRESH_INTERVAL":   "1",
		"LOW_CONFIDENCE_THRESHOLD": "high",
		"FORCE_FLIP":               "maybe",
		"TELEGRAM_CHAT_ID":         "chat",
	} {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			_, err := Load()
			require.ErrorContains(t, err, key)
		})
	}
}

func TestLoad_RejectsNaNThreshold(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOW_CONFIDENCE_THRESHOLD", "NaN")
	_, err := Load()
	require.ErrorContains(t, err, "LOW_CONFIDENCE_THRESHOLD: not a number")
}
