package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/velobit/brainrot-api/internal/caption"
	"github.com/velobit/brainrot-api/internal/compose"
)

// ErrFFprobeExecution is returned when the ffprobe command fails.
var ErrFFprobeExecution = errors.New("ffprobe execution failed")

// FFmpegEncoder implements Encoder using the ffmpeg and ffprobe CLIs.
// Encoding runs in two passes: the audio mix first, then the video
// composite with burned-in subtitles.
type FFmpegEncoder struct {
	ffmpegPath  string
	ffprobePath string
	logger      *slog.Logger
}

// NewFFmpegEncoder creates a new FFmpegEncoder. Empty paths default to
// "ffmpeg" and "ffprobe" (found via PATH).
func NewFFmpegEncoder(ffmpegPath, ffprobePath string, logger *slog.Logger) *FFmpegEncoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegEncoder{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, logger: logger}
}

// Duration probes the duration of a media file in seconds using ffprobe.
func (e *FFmpegEncoder) Duration(ctx context.Context, mediaPath string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		mediaPath,
	}

	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, e.ffprobePath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return 0, fmt.Errorf("%w: %v (stderr: %s)", ErrFFprobeExecution, err, stderr.String())
	}

	dur, err := strconv.ParseFloat(strings.TrimSpace(stdout.String()), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration: %w", err)
	}
	return dur, nil
}

// Encode renders the spec in two ffmpeg passes and returns the output path.
func (e *FFmpegEncoder) Encode(ctx context.Context, spec *compose.Spec, workDir string, opts EncodeOptions) (string, error) {
	assPath := filepath.Join(workDir, "captions.ass")
	if err := caption.WriteASS(spec.Captions, assPath); err != nil {
		return "", err
	}

	mixPath := filepath.Join(workDir, "mix.m4a")
	if err := e.runFFmpeg(ctx, buildMixArgs(spec, mixPath, opts)); err != nil {
		return "", fmt.Errorf("mix audio: %w", err)
	}

	outputPath := filepath.Join(workDir, "render.mp4")
	if err := e.runFFmpeg(ctx, buildCompositeArgs(spec, assPath, mixPath, outputPath, opts)); err != nil {
		return "", fmt.Errorf("composite video: %w", err)
	}

	e.logger.Debug("encode complete",
		"duration", spec.Duration,
		"crf", opts.CRF,
		"preset", opts.Preset,
	)
	return outputPath, nil
}

// buildMixArgs builds the ffmpeg invocation that mixes narration, music and
// popup effects into a single AAC track. The narration is the first amix
// input with duration=first, so the mix length equals the narration length.
func buildMixArgs(spec *compose.Spec, mixPath string, opts EncodeOptions) []string {
	args := []string{"-y", "-i", spec.Narration.Path, "-stream_loop", "-1", "-i", spec.Music.Path}
	for _, p := range spec.Popups {
		args = append(args, "-i", p.Path)
	}

	var filter strings.Builder
	fmt.Fprintf(&filter, "[0:a]volume=%.2f[a0];", spec.Narration.Gain)
	fmt.Fprintf(&filter, "[1:a]volume=%.2f[a1];", spec.Music.Gain)
	labels := []string{"[a0]", "[a1]"}
	for i, p := range spec.Popups {
		delayMS := int(p.Delay * 1000)
		fmt.Fprintf(&filter, "[%d:a]volume=%.2f,adelay=%d:all=1[a%d];", i+2, p.Gain, delayMS, i+2)
		labels = append(labels, fmt.Sprintf("[a%d]", i+2))
	}
	fmt.Fprintf(&filter, "%samix=inputs=%d:duration=first:dropout_transition=0:normalize=0[aout]",
		strings.Join(labels, ""), len(labels))

	args = append(args,
		"-filter_complex", filter.String(),
		"-map", "[aout]",
		"-c:a", "aac",
		"-b:a", opts.AudioBitrate,
		mixPath,
	)
	return args
}

// buildCompositeArgs builds the ffmpeg invocation that composites the
// background clip, overlay images, burned-in captions and the mixed audio
// into the final vertical video.
func buildCompositeArgs(spec *compose.Spec, assPath, mixPath, outputPath string, opts EncodeOptions) []string {
	args := []string{"-y"}
	if spec.Background.Loop {
		args = append(args, "-stream_loop", "-1")
	}
	if spec.Background.Offset > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", spec.Background.Offset))
	}
	args = append(args, "-i", spec.Background.ClipPath)

	for _, ov := range spec.Overlays {
		args = append(args, "-loop", "1", "-i", ov.ImagePath)
	}
	audioIdx := 1 + len(spec.Overlays)
	args = append(args, "-i", mixPath)

	var filter strings.Builder
	// Fill the portrait frame: scale up past both dimensions, center-crop.
	fmt.Fprintf(&filter,
		"[0:v]scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1[bg]",
		spec.Width, spec.Height, spec.Width, spec.Height)

	cur := "bg"
	for i, ov := range spec.Overlays {
		fmt.Fprintf(&filter, ";[%d:v]scale=900:900:force_original_aspect_ratio=decrease[ov%d]", i+1, i)
		fmt.Fprintf(&filter,
			";[%s][ov%d]overlay=(W-w)/2:(H-h)/2:enable='between(t,%.3f,%.3f)'[v%d]",
			cur, i, ov.Start, ov.End, i)
		cur = fmt.Sprintf("v%d", i)
	}
	fmt.Fprintf(&filter, ";[%s]ass=%s[vout]", cur, escapeFilterPath(assPath))

	args = append(args,
		"-filter_complex", filter.String(),
		"-map", "[vout]",
		"-map", fmt.Sprintf("%d:a", audioIdx),
		"-t", fmt.Sprintf("%.3f", spec.Duration),
		"-c:v", "libx264",
		"-crf", strconv.Itoa(opts.CRF),
		"-preset", opts.Preset,
		"-pix_fmt", "yuv420p",
		"-c:a", "copy",
	)
	if opts.Threads > 0 {
		args = append(args, "-threads", strconv.Itoa(opts.Threads))
	}
	args = append(args, outputPath)
	return args
}

// escapeFilterPath escapes characters that are special inside an ffmpeg
// filter graph argument.
func escapeFilterPath(path string) string {
	path = strings.ReplaceAll(path, `\`, `\\`)
	path = strings.ReplaceAll(path, ":", `\:`)
	path = strings.ReplaceAll(path, "'", `\'`)
	return path
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (e *FFmpegEncoder) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}
	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
