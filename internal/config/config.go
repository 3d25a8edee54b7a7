// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Transcription backends.
const (
	BackendOpenAI = "openai"
	BackendCLI    = "cli"
)

// Static errors for configuration validation.
var (
	// ErrOpenAIKeyRequired is returned when the openai backend is selected
	// without OPENAI_API_KEY.
	ErrOpenAIKeyRequired = errors.New("config: OPENAI_API_KEY is required for the openai transcription backend")
	// ErrUnknownBackend is returned for an unrecognized TRANSCRIBE_BACKEND.
	ErrUnknownBackend = errors.New("config: unknown transcription backend")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Scheduling settings
	MaxConcurrentVideos   int `env:"MAX_CONCURRENT_VIDEOS, default=0" json:"max_concurrent_videos"` // 0 = NumCPU
	VideoRetentionMinutes int `env:"VIDEO_RETENTION_MINUTES, default=1440" json:"video_retention_minutes"`
	SweepIntervalSec      int `env:"SWEEP_INTERVAL_SEC, default=60" json:"sweep_interval_sec"`

	// Cache settings
	CacheMaxBytes int64 `env:"CACHE_MAX_BYTES, default=268435456" json:"cache_max_bytes"`

	// Asset directories
	BackgroundDir string `env:"BACKGROUND_DIR, default=./assets/background" json:"background_dir"`
	MusicDir      string `env:"MUSIC_DIR, default=./assets/music" json:"music_dir"`
	PopupSound    string `env:"POPUP_SOUND, default=./assets/sounds/pop.mp3" json:"popup_sound"`
	OutputDir     string `env:"OUTPUT_DIR, default=/tmp/brainrot/videos" json:"output_dir"`
	TempDir       string `env:"TEMP_DIR, default=/tmp/brainrot/tmp" json:"temp_dir"`

	// Transcription settings
	TranscribeBackend    string `env:"TRANSCRIBE_BACKEND, default=openai" json:"transcribe_backend"` // "openai" or "cli"
	WhisperModel         string `env:"WHISPER_MODEL, default=whisper-1" json:"whisper_model"`
	WhisperFallbackModel string `env:"WHISPER_FALLBACK_MODEL" json:"whisper_fallback_model,omitempty"`
	Language             string `env:"LANGUAGE, default=en" json:"language"`
	OpenAIAPIKey         string `env:"OPENAI_API_KEY" json:"-"` // Masked in JSON
	WhisperBinary        string `env:"WHISPER_BINARY, default=whisper" json:"whisper_binary"`

	// Encoding settings
	VideoCRF      int    `env:"VIDEO_CRF, default=26" json:"video_crf"`
	VideoPreset   string `env:"VIDEO_PRESET, default=ultrafast" json:"video_preset"`
	AudioBitrate  string `env:"AUDIO_BITRATE, default=192k" json:"audio_bitrate"`
	FFmpegThreads int    `env:"FFMPEG_THREADS, default=0" json:"ffmpeg_threads"`
	FFmpegPath    string `env:"FFMPEG_PATH" json:"ffmpeg_path,omitempty"`
	FFprobePath   string `env:"FFPROBE_PATH" json:"ffprobe_path,omitempty"`

	// Stage timeouts
	FetchTimeoutSec      int `env:"FETCH_TIMEOUT_SEC, default=60" json:"fetch_timeout_sec"`
	TranscribeTimeoutSec int `env:"TRANSCRIBE_TIMEOUT_SEC, default=120" json:"transcribe_timeout_sec"`
	EncodeTimeoutSec     int `env:"ENCODE_TIMEOUT_SEC, default=600" json:"encode_timeout_sec"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// RetentionWindow returns the output retention window as a duration.
func (c *Config) RetentionWindow() time.Duration {
	return time.Duration(c.VideoRetentionMinutes) * time.Minute
}

// SweepInterval returns the retention sweep interval as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSec) * time.Second
}

// Load reads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	switch c.TranscribeBackend {
	case BackendOpenAI:
		if c.OpenAIAPIKey == "" {
			return ErrOpenAIKeyRequired
		}
	case BackendCLI:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.TranscribeBackend)
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, MaxConcurrentVideos: %d, VideoRetentionMinutes: %d, SweepIntervalSec: %d, CacheMaxBytes: %d, BackgroundDir: %s, MusicDir: %s, OutputDir: %s, TempDir: %s, TranscribeBackend: %s, WhisperModel: %s, VideoCRF: %d, VideoPreset: %s, AudioBitrate: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.MaxConcurrentVideos,
		c.VideoRetentionMinutes,
		c.SweepIntervalSec,
		c.CacheMaxBytes,
		c.BackgroundDir,
		c.MusicDir,
		c.OutputDir,
		c.TempDir,
		c.TranscribeBackend,
		c.WhisperModel,
		c.VideoCRF,
		c.VideoPreset,
		c.AudioBitrate,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
