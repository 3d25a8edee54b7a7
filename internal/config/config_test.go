package config

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "MAX_CONCURRENT_VIDEOS", "VIDEO_RETENTION_MINUTES", "SWEEP_INTERVAL_SEC",
		"CACHE_MAX_BYTES", "BACKGROUND_DIR", "MUSIC_DIR", "POPUP_SOUND", "OUTPUT_DIR",
		"TEMP_DIR", "TRANSCRIBE_BACKEND", "WHISPER_MODEL", "WHISPER_FALLBACK_MODEL",
		"LANGUAGE", "OPENAI_API_KEY", "WHISPER_BINARY", "VIDEO_CRF", "VIDEO_PRESET",
		"AUDIO_BITRATE", "FFMPEG_THREADS", "FFMPEG_PATH", "FFPROBE_PATH",
		"FETCH_TIMEOUT_SEC", "TRANSCRIBE_TIMEOUT_SEC", "ENCODE_TIMEOUT_SEC",
		"S3_BUCKET", "S3_REGION", "S3_ENDPOINT", "AWS_ACCESS_KEY_ID",
		"AWS_SECRET_ACCESS_KEY", "LOG_FORMAT", "LOG_LEVEL",
	} {
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 0, cfg.MaxConcurrentVideos)
	assert.Equal(t, 1440, cfg.VideoRetentionMinutes)
	assert.Equal(t, 60, cfg.SweepIntervalSec)
	assert.Equal(t, int64(268435456), cfg.CacheMaxBytes)
	assert.Equal(t, BackendOpenAI, cfg.TranscribeBackend)
	assert.Equal(t, "whisper-1", cfg.WhisperModel)
	assert.Equal(t, 26, cfg.VideoCRF)
	assert.Equal(t, "ultrafast", cfg.VideoPreset)
	assert.Equal(t, "192k", cfg.AudioBitrate)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_OpenAIKeyRequired(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOpenAIKeyRequired)
}

func TestLoad_CLIBackendNeedsNoKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRANSCRIBE_BACKEND", "cli")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendCLI, cfg.TranscribeBackend)
	assert.Equal(t, "whisper", cfg.WhisperBinary)
}

func TestLoad_UnknownBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRANSCRIBE_BACKEND", "tea-leaves")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_CONCURRENT_VIDEOS", "4")
	t.Setenv("VIDEO_RETENTION_MINUTES", "30")
	t.Setenv("SWEEP_INTERVAL_SEC", "5")
	t.Setenv("VIDEO_CRF", "20")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 4, cfg.MaxConcurrentVideos)
	assert.Equal(t, 30*time.Minute, cfg.RetentionWindow())
	assert.Equal(t, 5*time.Second, cfg.SweepInterval())
	assert.Equal(t, 20, cfg.VideoCRF)
}

func TestS3Enabled(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.S3Enabled())

	cfg.S3Bucket = "videos"
	assert.False(t, cfg.S3Enabled())

	cfg.S3Region = "eu-west-1"
	assert.True(t, cfg.S3Enabled())
}

func TestString_MasksSecrets(t *testing.T) {
	cfg := &Config{
		OpenAIAPIKey:       "sk-secret",
		AWSAccessKeyID:     "AKIA-secret",
		AWSSecretAccessKey: "aws-secret",
		S3Bucket:           "videos",
	}

	s := cfg.String()
	assert.NotContains(t, s, "sk-secret")
	assert.NotContains(t, s, "AKIA-secret")
	assert.NotContains(t, s, "aws-secret")
	assert.Contains(t, s, "videos")
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		format string
		level  string
		want   slog.Level
	}{
		{"text", "debug", slog.LevelDebug},
		{"json", "info", slog.LevelInfo},
		{"text", "warn", slog.LevelWarn},
		{"json", "error", slog.LevelError},
		{"text", "bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		cfg := &Config{LogFormat: tt.format, LogLevel: tt.level}
		logger := cfg.NewLogger()
		require.NotNil(t, logger)
		assert.True(t, logger.Enabled(context.Background(), tt.want),
			"format=%s level=%s should enable %v", tt.format, tt.level, tt.want)
		if tt.want > slog.LevelDebug {
			assert.False(t, logger.Enabled(context.Background(), tt.want-4),
				"format=%s level=%s should not enable %v", tt.format, tt.level, tt.want-4)
		}
	}
}

func TestParseLogLevel_CaseInsensitive(t *testing.T) {
	for _, s := range []string{"DEBUG", "Debug", "debug"} {
		assert.Equal(t, slog.LevelDebug, parseLogLevel(s), strings.ToLower(s))
	}
}
