// Package render executes composition specs through the external ffmpeg
// encoder and drives the per-job pipeline state machine.
package render

import (
	"context"

	"github.com/velobit/brainrot-api/internal/compose"
)

// EncodeOptions contains the quality parameters for one encode attempt.
type EncodeOptions struct {
	// CRF is the libx264 constant rate factor (lower = better quality).
	CRF int
	// Preset is the libx264 speed preset.
	Preset string
	// AudioBitrate is the AAC bitrate, e.g. "192k".
	AudioBitrate string
	// Threads limits ffmpeg's thread count. Zero lets ffmpeg decide.
	Threads int
}

// DefaultEncodeOptions returns the production encode settings.
func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{
		CRF:          26,
		Preset:       "ultrafast",
		AudioBitrate: "192k",
	}
}

// Degraded returns the settings for the second encode attempt after a
// transient failure: fastest preset and lower quality to reduce resource
// pressure.
func (o EncodeOptions) Degraded() EncodeOptions {
	o.Preset = "ultrafast"
	o.CRF += 6
	return o
}

// Encoder defines the interface to the external render/encode engine.
type Encoder interface {
	// Duration probes the duration of a media file in seconds.
	Duration(ctx context.Context, mediaPath string) (float64, error)

	// Encode renders a composition spec into a video file inside workDir
	// and returns the output path. Intermediate files are also written to
	// workDir; the caller owns the directory's lifecycle.
	Encode(ctx context.Context, spec *compose.Spec, workDir string, opts EncodeOptions) (string, error)
}
