// Package bootstrap provides dependency initialization for the video API.
package bootstrap

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/velobit/brainrot-api/internal/assetcache"
	"github.com/velobit/brainrot-api/internal/background"
	"github.com/velobit/brainrot-api/internal/caption"
	"github.com/velobit/brainrot-api/internal/config"
	"github.com/velobit/brainrot-api/internal/fetch"
	"github.com/velobit/brainrot-api/internal/job"
	"github.com/velobit/brainrot-api/internal/render"
	"github.com/velobit/brainrot-api/internal/retention"
	"github.com/velobit/brainrot-api/internal/scheduler"
	"github.com/velobit/brainrot-api/internal/storage"
	"github.com/velobit/brainrot-api/internal/transcribe"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Scheduler *scheduler.Scheduler
	Tracker   *retention.Tracker
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	library := background.NewLibrary(background.NewMusicSource(cfg.MusicDir), time.Now().UnixNano())
	if err := library.DiscoverCategories(cfg.BackgroundDir); err != nil {
		return nil, fmt.Errorf("discover background categories: %w", err)
	}
	logger.Info("background library loaded",
		slog.Any("categories", library.Categories()),
	)

	cache := assetcache.New(cfg.CacheMaxBytes, logger)
	fetcher := fetch.NewHTTPFetcher(time.Duration(cfg.FetchTimeoutSec) * time.Second)

	engine, err := initEngine(cfg, logger)
	if err != nil {
		return nil, err
	}

	encoder := render.NewFFmpegEncoder(cfg.FFmpegPath, cfg.FFprobePath, logger)

	repo := job.NewMemoryRepository()

	pipeline := render.NewPipeline(repo, cache, fetcher, library, engine, encoder, store, render.Config{
		FetchTimeout:         time.Duration(cfg.FetchTimeoutSec) * time.Second,
		TranscribeTimeout:    time.Duration(cfg.TranscribeTimeoutSec) * time.Second,
		EncodeTimeout:        time.Duration(cfg.EncodeTimeoutSec) * time.Second,
		WhisperModel:         cfg.WhisperModel,
		WhisperFallbackModel: cfg.WhisperFallbackModel,
		Language:             cfg.Language,
		PopupSound:           cfg.PopupSound,
		Encode: render.EncodeOptions{
			CRF:          cfg.VideoCRF,
			Preset:       cfg.VideoPreset,
			AudioBitrate: cfg.AudioBitrate,
			Threads:      cfg.FFmpegThreads,
		},
		Captions: caption.DefaultOptions(),
	}, logger)

	tracker := retention.NewTracker(retention.Config{
		Window:   cfg.RetentionWindow(),
		Interval: cfg.SweepInterval(),
		TempDir:  cfg.TempDir,
	}, logger)

	sched := scheduler.New(repo, pipeline, tracker, cfg.MaxConcurrentVideos, logger)
	logger.Info("scheduler configured",
		slog.Int("concurrency_limit", sched.Limit()),
	)

	return &Dependencies{
		Scheduler: sched,
		Tracker:   tracker,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, cfg.OutputDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir, cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
		slog.String("output_dir", cfg.OutputDir),
	)
	return localStore, nil
}

// initEngine creates the configured speech-to-text backend.
func initEngine(cfg *config.Config, logger *slog.Logger) (transcribe.Engine, error) {
	switch cfg.TranscribeBackend {
	case config.BackendOpenAI:
		logger.Info("transcription backend configured",
			slog.String("backend", config.BackendOpenAI),
			slog.String("model", cfg.WhisperModel),
		)
		return transcribe.NewOpenAIEngine(cfg.OpenAIAPIKey, logger), nil
	case config.BackendCLI:
		logger.Info("transcription backend configured",
			slog.String("backend", config.BackendCLI),
			slog.String("binary", cfg.WhisperBinary),
		)
		return transcribe.NewCLIEngine(cfg.WhisperBinary, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.TranscribeBackend)
	}
}
