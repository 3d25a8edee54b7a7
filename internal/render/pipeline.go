package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/velobit/brainrot-api/internal/assetcache"
	"github.com/velobit/brainrot-api/internal/background"
	"github.com/velobit/brainrot-api/internal/caption"
	"github.com/velobit/brainrot-api/internal/compose"
	"github.com/velobit/brainrot-api/internal/fetch"
	"github.com/velobit/brainrot-api/internal/job"
	"github.com/velobit/brainrot-api/internal/storage"
	"github.com/velobit/brainrot-api/internal/transcribe"
)

// Config contains the pipeline's per-stage tuning.
type Config struct {
	// FetchTimeout bounds the concurrent asset download stage.
	FetchTimeout time.Duration
	// TranscribeTimeout bounds one transcription attempt.
	TranscribeTimeout time.Duration
	// EncodeTimeout bounds one encode attempt.
	EncodeTimeout time.Duration
	// WhisperModel is the primary speech-to-text model.
	WhisperModel string
	// WhisperFallbackModel is used for the retry after a transcription
	// failure. Empty means retry with the primary model.
	WhisperFallbackModel string
	// Language is the ISO 639-1 narration language hint.
	Language string
	// PopupSound is the local path of the overlay sound effect.
	PopupSound string
	// Encode holds the first-attempt encoder settings.
	Encode EncodeOptions
	// Captions tunes word merging in the caption timeline.
	Captions caption.Options
}

// Pipeline runs one job from FETCHING through to a terminal state.
// Transient stages (transcription, encoding) get exactly one in-process
// retry with degraded parameters; deterministic failures are never retried.
type Pipeline struct {
	repo    job.Repository
	cache   *assetcache.Cache
	fetcher fetch.Fetcher
	library *background.Library
	engine  transcribe.Engine
	encoder Encoder
	store   storage.Storage
	cfg     Config
	logger  *slog.Logger
}

// NewPipeline wires a Pipeline from its collaborators.
func NewPipeline(
	repo job.Repository,
	cache *assetcache.Cache,
	fetcher fetch.Fetcher,
	library *background.Library,
	engine transcribe.Engine,
	encoder Encoder,
	store storage.Storage,
	cfg Config,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		repo:    repo,
		cache:   cache,
		fetcher: fetcher,
		library: library,
		engine:  engine,
		encoder: encoder,
		store:   store,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run processes the job to completion. On return the job is in a terminal
// state, all temp files are removed, and every cache pin is released. The
// returned error is the failure cause, already recorded on the job.
func (p *Pipeline) Run(ctx context.Context, j *job.Job) error {
	var held []*assetcache.Entry
	var temps []string
	var mu sync.Mutex

	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)
		if err := p.store.CleanupTemp(cleanupCtx, temps); err != nil {
			p.logger.Warn("temp cleanup incomplete", "job_id", j.ID, "error", err)
		}
		for _, e := range held {
			p.cache.Release(e)
		}
	}()

	// Unknown category is deterministic: fail before any work starts.
	if !p.library.HasCategory(j.Request.Category) {
		return p.fail(ctx, j, job.ReasonCategoryNotFound,
			fmt.Errorf("unknown gameplay category %q", j.Request.Category))
	}

	// --- Fetching ---
	if err := p.transition(ctx, j, job.StatusFetching); err != nil {
		return err
	}

	locators := append([]string{j.Request.AudioURL}, j.Request.ImageURLs(j.Variant)...)
	paths := make([]string, len(locators))

	fetchCtx, cancelFetch := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	defer cancelFetch()

	g, gctx := errgroup.WithContext(fetchCtx)
	for i, locator := range locators {
		g.Go(func() error {
			entry, err := p.cache.GetOrFetch(gctx, assetcache.Fingerprint(locator), func(ctx context.Context) ([]byte, error) {
				return p.fetcher.Fetch(ctx, locator)
			})
			if err != nil {
				return fmt.Errorf("fetch %s: %w", locator, err)
			}
			mu.Lock()
			held = append(held, entry)
			mu.Unlock()

			path, err := p.store.SaveTemp(gctx, fmt.Sprintf("%s_asset%d%s", j.ID, i, assetExt(locator)), bytes.NewReader(entry.Payload))
			if err != nil {
				return err
			}
			mu.Lock()
			temps = append(temps, path)
			mu.Unlock()
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return p.fail(ctx, j, job.ReasonAssetFetch, err)
	}
	audioPath, imagePaths := paths[0], paths[1:]

	duration, err := p.encoder.Duration(ctx, audioPath)
	if err != nil {
		return p.fail(ctx, j, job.ReasonAssetFetch, fmt.Errorf("probe narration: %w", err))
	}

	// --- Transcribing ---
	if err := p.transition(ctx, j, job.StatusTranscribing); err != nil {
		return err
	}

	words, entry, err := p.transcribeCached(ctx, j.Request.AudioURL, audioPath, p.cfg.WhisperModel)
	if err != nil {
		fallback := p.cfg.WhisperFallbackModel
		if fallback == "" {
			fallback = p.cfg.WhisperModel
		}
		p.logger.Warn("transcription failed, retrying",
			"job_id", j.ID, "fallback_model", fallback, "error", err)
		words, entry, err = p.transcribeCached(ctx, j.Request.AudioURL, audioPath, fallback)
		if err != nil {
			return p.fail(ctx, j, job.ReasonTranscription, err)
		}
	}
	held = append(held, entry)

	timeline := caption.Build(words, duration, p.cfg.Captions)

	// --- Planning ---
	if err := p.transition(ctx, j, job.StatusPlanning); err != nil {
		return err
	}

	selection, err := p.library.Select(j.Request.Category)
	if err != nil {
		return p.fail(ctx, j, job.ReasonPlanning, err)
	}
	clipDur, err := p.encoder.Duration(ctx, selection.ClipPath)
	if err != nil {
		return p.fail(ctx, j, job.ReasonPlanning, fmt.Errorf("probe clip: %w", err))
	}
	offset, loop := p.library.ChooseWindow(clipDur, duration)

	spec, err := compose.Plan(j.Variant, compose.Assets{
		AudioPath:      audioPath,
		ImagePaths:     imagePaths,
		MusicPath:      selection.MusicPath,
		PopupSoundPath: p.cfg.PopupSound,
	}, timeline, compose.ClipWindow{
		ClipPath: selection.ClipPath,
		Offset:   offset,
		Loop:     loop,
	}, duration)
	if err != nil {
		return p.fail(ctx, j, job.ReasonPlanning, err)
	}

	// --- Encoding ---
	if err := p.transition(ctx, j, job.StatusEncoding); err != nil {
		return err
	}

	workDir, err := os.MkdirTemp("", "render-"+j.ID+"-*")
	if err != nil {
		return p.fail(ctx, j, job.ReasonEncoding, fmt.Errorf("create work dir: %w", err))
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	outputPath, err := p.encode(ctx, spec, workDir, p.cfg.Encode)
	if err != nil {
		degraded := p.cfg.Encode.Degraded()
		p.logger.Warn("encode failed, retrying with degraded settings",
			"job_id", j.ID, "crf", degraded.CRF, "preset", degraded.Preset, "error", err)
		outputPath, err = p.encode(ctx, spec, workDir, degraded)
		if err != nil {
			return p.fail(ctx, j, job.ReasonEncoding, err)
		}
	}

	finalPath, err := p.store.SaveOutput(ctx, outputPath, j.ID+".mp4")
	if err != nil {
		return p.fail(ctx, j, job.ReasonEncoding, fmt.Errorf("save output: %w", err))
	}

	publicURL, err := p.publish(ctx, finalPath, j.ID+".mp4")
	if err != nil {
		// The local copy still serves; the job is not failed over this.
		p.logger.Warn("publish output failed, serving locally", "job_id", j.ID, "error", err)
		publicURL = ""
	}

	if err := j.Succeed(finalPath, publicURL); err != nil {
		return err
	}
	if err := p.repo.Save(ctx, j); err != nil {
		p.logger.Error("save succeeded job", "job_id", j.ID, "error", err)
	}
	p.logger.Info("job succeeded", "job_id", j.ID, "result", finalPath, "url", publicURL, "duration", duration)
	return nil
}

// publish uploads the finished video to external storage and returns its
// public URL, or "" when no external storage is configured.
func (p *Pipeline) publish(ctx context.Context, path, key string) (string, error) {
	f, err := os.Open(path) // #nosec G304 - path comes from our own output dir
	if err != nil {
		return "", fmt.Errorf("open output for publish: %w", err)
	}
	defer func() { _ = f.Close() }()

	url, err := p.store.UploadToS3(ctx, key, f)
	if errors.Is(err, storage.ErrS3NotConfigured) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	p.logger.Info("output published", "key", key, "url", url)
	return url, nil
}

// assetExt extracts the filename extension from an asset locator,
// ignoring URL query and fragment parts.
func assetExt(locator string) string {
	if u, err := url.Parse(locator); err == nil && u.Path != "" {
		return path.Ext(u.Path)
	}
	return filepath.Ext(locator)
}

func (p *Pipeline) encode(ctx context.Context, spec *compose.Spec, workDir string, opts EncodeOptions) (string, error) {
	encCtx, cancel := context.WithTimeout(ctx, p.cfg.EncodeTimeout)
	defer cancel()
	return p.encoder.Encode(encCtx, spec, workDir, opts)
}

// transcribeCached runs one transcription attempt through the asset cache,
// so repeated renders of the same narration with the same model reuse the
// transcript. The returned entry stays pinned until the caller releases it.
func (p *Pipeline) transcribeCached(ctx context.Context, audioLocator, audioPath, model string) ([]caption.Word, *assetcache.Entry, error) {
	key := assetcache.Fingerprint(audioLocator, "transcript", model)
	entry, err := p.cache.GetOrFetch(ctx, key, func(ctx context.Context) ([]byte, error) {
		tctx, cancel := context.WithTimeout(ctx, p.cfg.TranscribeTimeout)
		defer cancel()

		words, err := p.engine.Transcribe(tctx, audioPath, transcribe.Options{
			Model:    model,
			Language: p.cfg.Language,
		})
		if err != nil {
			return nil, err
		}
		return json.Marshal(words)
	})
	if err != nil {
		return nil, nil, err
	}

	var words []caption.Word
	if err := json.Unmarshal(entry.Payload, &words); err != nil {
		p.cache.Release(entry)
		return nil, nil, fmt.Errorf("decode cached transcript: %w", err)
	}
	return words, entry, nil
}

func (p *Pipeline) transition(ctx context.Context, j *job.Job, status job.Status) error {
	if err := j.TransitionTo(status); err != nil {
		return fmt.Errorf("transition %s to %s: %w", j.ID, status, err)
	}
	if err := p.repo.Save(ctx, j); err != nil {
		p.logger.Error("save job state", "job_id", j.ID, "status", status, "error", err)
	}
	p.logger.Debug("job stage", "job_id", j.ID, "status", status)
	return nil
}

// fail records the terminal failure on the job and returns the cause.
func (p *Pipeline) fail(ctx context.Context, j *job.Job, reason job.FailureReason, cause error) error {
	if err := j.Fail(reason, cause.Error()); err != nil {
		p.logger.Error("mark job failed", "job_id", j.ID, "error", err)
	}
	if err := p.repo.Save(context.WithoutCancel(ctx), j); err != nil {
		p.logger.Error("save failed job", "job_id", j.ID, "error", err)
	}
	p.logger.Error("job failed", "job_id", j.ID, "reason", reason, "error", cause)
	return cause
}
