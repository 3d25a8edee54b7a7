package compose

import (
	"errors"
	"fmt"

	"github.com/velobit/brainrot-api/internal/caption"
	"github.com/velobit/brainrot-api/internal/job"
)

// ErrInvalidComposition is returned for a non-positive output duration.
var ErrInvalidComposition = errors.New("compose: invalid composition")

// Assets are the resolved local inputs for one render.
type Assets struct {
	// AudioPath is the narration audio file.
	AudioPath string
	// ImagePaths are the overlay images in display order for the variant
	// (standard: intro, outro; reddit: post, first, second).
	ImagePaths []string
	// MusicPath is the background music track.
	MusicPath string
	// PopupSoundPath is the sound effect played at each overlay start.
	PopupSoundPath string
}

// ClipWindow is the chosen slice of the background clip.
type ClipWindow struct {
	// ClipPath is the gameplay clip file.
	ClipPath string
	// Offset is the start offset within the clip, in seconds.
	Offset float64
	// Loop indicates the clip must replay seamlessly to cover the output.
	Loop bool
}

// Plan merges narration, background clip, music, overlay images and the
// caption timeline into a Spec. duration is the narration length in seconds;
// a non-positive duration returns ErrInvalidComposition. Overlay windows are
// clamped into [0, duration] and never negative-length; when a computed
// window would overlap an earlier one it is shifted to the earliest
// non-overlapping start at or after its original start (overlays are never
// reordered). A popup sound is scheduled at each resolved window start.
func Plan(variant job.Variant, assets Assets, timeline []caption.Event, clip ClipWindow, duration float64) (*Spec, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("%w: duration %.2fs", ErrInvalidComposition, duration)
	}

	windows := overlayWindows(variant, duration)
	if len(windows) != len(assets.ImagePaths) {
		return nil, fmt.Errorf("%w: variant %s expects %d images, got %d",
			ErrInvalidComposition, variant, len(windows), len(assets.ImagePaths))
	}
	windows = resolveOverlaps(windows, duration)

	overlays := make([]Overlay, len(windows))
	popups := make([]AudioTrack, len(windows))
	for i, w := range windows {
		overlays[i] = Overlay{
			ImagePath: assets.ImagePaths[i],
			Start:     w.start,
			End:       w.end,
		}
		popups[i] = AudioTrack{
			Path:  assets.PopupSoundPath,
			Gain:  GainPopup,
			Delay: w.start,
		}
	}

	return &Spec{
		Variant:  variant,
		Duration: duration,
		Width:    OutputWidth,
		Height:   OutputHeight,
		Background: Background{
			ClipPath: clip.ClipPath,
			Offset:   clip.Offset,
			Loop:     clip.Loop,
		},
		Overlays:  overlays,
		Captions:  timeline,
		Narration: AudioTrack{Path: assets.AudioPath, Gain: GainNarration},
		Music:     AudioTrack{Path: assets.MusicPath, Gain: GainMusic},
		Popups:    popups,
	}, nil
}

type window struct {
	start, end float64
}

// overlayWindows computes the raw, unclamped windows for a variant.
func overlayWindows(variant job.Variant, duration float64) []window {
	if variant == job.VariantReddit {
		mid := duration / 2
		return []window{
			{redditStart, redditStart + overlayLength},
			{mid - overlayLength/2, mid + overlayLength/2},
			{duration - outroLead, duration - outroLead + overlayLength},
		}
	}
	return []window{
		{introStart, introStart + overlayLength},
		{duration - outroLead, duration - outroLead + overlayLength},
	}
}

// resolveOverlaps clamps each window into [0, duration] and shifts windows
// that would collide with an already-placed one to the earliest
// non-overlapping start at or after their original start, keeping the list
// order. A window squeezed past the end of the output shrinks toward the end
// rather than going negative.
func resolveOverlaps(windows []window, duration float64) []window {
	out := make([]window, 0, len(windows))

	for _, w := range windows {
		length := w.end - w.start
		if length > duration {
			length = duration
		}

		start := w.start
		if start < 0 {
			start = 0
		}
		start = earliestFree(out, start, length)

		end := start + length
		if end > duration {
			end = duration
		}
		if start > end {
			start = end
		}
		out = append(out, window{start, end})
	}
	return out
}

// earliestFree returns the smallest start >= start at which a window of the
// given length clears every placed window.
func earliestFree(placed []window, start, length float64) float64 {
	for {
		moved := false
		for _, p := range placed {
			if start < p.end && start+length > p.start {
				start = p.end
				moved = true
			}
		}
		if !moved {
			return start
		}
	}
}
