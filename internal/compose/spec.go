// Package compose builds the declarative composition spec handed to the
// encoder: background clip window, overlay image windows, caption track,
// and the audio mix. Building a spec performs no I/O.
package compose

import (
	"github.com/velobit/brainrot-api/internal/caption"
	"github.com/velobit/brainrot-api/internal/job"
)

// Output geometry for vertical short-form video.
const (
	OutputWidth  = 1080
	OutputHeight = 1920
)

// Audio mix gains. Narration is boosted over the music bed; popup effects
// punch through both.
const (
	GainNarration = 1.5
	GainMusic     = 0.8
	GainPopup     = 5.0
)

// Overlay image timing in seconds.
const (
	introStart    = 5.0
	overlayLength = 5.0
	outroLead     = 10.0 // outro begins this long before the end
	redditStart   = 1.0
)

// Background describes the gameplay clip layer.
type Background struct {
	// ClipPath is the source gameplay clip.
	ClipPath string
	// Offset is the start offset within the clip, in seconds.
	Offset float64
	// Loop replays the clip from the start when it is shorter than the
	// output (seamless loop, never a hard cut).
	Loop bool
}

// Overlay is one image shown over the background for a time window.
type Overlay struct {
	// ImagePath is the local path of the overlay image.
	ImagePath string
	// Start is the window start in seconds.
	Start float64
	// End is the window end in seconds.
	End float64
}

// AudioTrack is one input to the audio mix.
type AudioTrack struct {
	// Path is the local path of the audio file.
	Path string
	// Gain is the volume multiplier applied before mixing.
	Gain float64
	// Delay shifts the track start, in seconds.
	Delay float64
}

// Spec is the immutable description of one render. It is consumed exactly
// once by the render pipeline.
type Spec struct {
	// Variant records which layout produced this spec.
	Variant job.Variant
	// Duration is the output duration in seconds (equals the narration).
	Duration float64
	// Width and Height are the output resolution.
	Width, Height int
	// Background is the gameplay clip layer.
	Background Background
	// Overlays are the image windows in display order.
	Overlays []Overlay
	// Captions is the caption timeline (may be empty).
	Captions []caption.Event
	// Narration is the narration audio track.
	Narration AudioTrack
	// Music is the background music track.
	Music AudioTrack
	// Popups are the sound-effect tracks, one per overlay window start.
	Popups []AudioTrack
}
