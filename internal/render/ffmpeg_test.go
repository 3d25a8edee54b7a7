package render

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/velobit/brainrot-api/internal/compose"
	"github.com/velobit/brainrot-api/internal/job"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSpec() *compose.Spec {
	return &compose.Spec{
		Variant:  job.VariantStandard,
		Duration: 30,
		Width:    1080,
		Height:   1920,
		Background: compose.Background{
			ClipPath: "/clips/minecraft/parkour.mp4",
			Offset:   4.5,
			Loop:     false,
		},
		Overlays: []compose.Overlay{
			{ImagePath: "/tmp/intro.png", Start: 5, End: 10},
			{ImagePath: "/tmp/outro.png", Start: 20, End: 25},
		},
		Narration: compose.AudioTrack{Path: "/tmp/narration.mp3", Gain: compose.GainNarration},
		Music:     compose.AudioTrack{Path: "/music/bed.mp3", Gain: compose.GainMusic},
		Popups: []compose.AudioTrack{
			{Path: "/sounds/pop.mp3", Gain: compose.GainPopup, Delay: 5},
			{Path: "/sounds/pop.mp3", Gain: compose.GainPopup, Delay: 20},
		},
	}
}

func TestNewFFmpegEncoder_Defaults(t *testing.T) {
	e := NewFFmpegEncoder("", "", discardLogger())
	if e.ffmpegPath != "ffmpeg" {
		t.Errorf("expected default ffmpeg path, got %q", e.ffmpegPath)
	}
	if e.ffprobePath != "ffprobe" {
		t.Errorf("expected default ffprobe path, got %q", e.ffprobePath)
	}
}

func TestDefaultEncodeOptions(t *testing.T) {
	opts := DefaultEncodeOptions()
	if opts.CRF != 26 || opts.Preset != "ultrafast" || opts.AudioBitrate != "192k" {
		t.Errorf("unexpected defaults: %+v", opts)
	}
}

func TestEncodeOptions_Degraded(t *testing.T) {
	opts := EncodeOptions{CRF: 23, Preset: "fast", AudioBitrate: "192k"}
	degraded := opts.Degraded()

	if degraded.CRF != 29 {
		t.Errorf("degraded CRF = %d, want 29", degraded.CRF)
	}
	if degraded.Preset != "ultrafast" {
		t.Errorf("degraded preset = %q, want ultrafast", degraded.Preset)
	}
	if opts.CRF != 23 {
		t.Error("Degraded must not mutate the receiver")
	}
}

func TestBuildMixArgs(t *testing.T) {
	args := buildMixArgs(testSpec(), "/work/mix.m4a", DefaultEncodeOptions())
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"-i /tmp/narration.mp3",
		"-i /music/bed.mp3",
		"volume=1.50[a0]",
		"volume=0.80[a1]",
		"volume=5.00,adelay=5000:all=1[a2]",
		"adelay=20000:all=1[a3]",
		"amix=inputs=4:duration=first:dropout_transition=0:normalize=0[aout]",
		"-b:a 192k",
		"/work/mix.m4a",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("mix args missing %q:\n%s", want, joined)
		}
	}
}

func TestBuildCompositeArgs(t *testing.T) {
	args := buildCompositeArgs(testSpec(), "/work/captions.ass", "/work/mix.m4a", "/work/render.mp4", DefaultEncodeOptions())
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"-ss 4.500",
		"-i /clips/minecraft/parkour.mp4",
		"scale=1080:1920:force_original_aspect_ratio=increase,crop=1080:1920",
		"enable='between(t,5.000,10.000)'",
		"enable='between(t,20.000,25.000)'",
		"-map [vout]",
		"-map 3:a",
		"-t 30.000",
		"-c:v libx264",
		"-crf 26",
		"-preset ultrafast",
		"-c:a copy",
		"/work/render.mp4",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("composite args missing %q:\n%s", want, joined)
		}
	}

	if strings.Contains(joined, "-stream_loop") {
		t.Error("non-looping background must not use -stream_loop")
	}
}

func TestBuildCompositeArgs_LoopingBackground(t *testing.T) {
	spec := testSpec()
	spec.Background.Loop = true
	spec.Background.Offset = 0

	args := buildCompositeArgs(spec, "/work/captions.ass", "/work/mix.m4a", "/work/render.mp4", DefaultEncodeOptions())
	joined := strings.Join(args, " ")

	if !strings.Contains(joined, "-stream_loop -1") {
		t.Error("looping background must use -stream_loop -1")
	}
	if strings.Contains(joined, "-ss") {
		t.Error("zero offset must not emit -ss")
	}
}

func TestBuildCompositeArgs_Threads(t *testing.T) {
	opts := DefaultEncodeOptions()
	opts.Threads = 2

	args := buildCompositeArgs(testSpec(), "/a.ass", "/m.m4a", "/out.mp4", opts)
	if !strings.Contains(strings.Join(args, " "), "-threads 2") {
		t.Error("expected -threads 2")
	}
}

func TestEscapeFilterPath(t *testing.T) {
	got := escapeFilterPath(`C:\work\cap's.ass`)
	want := `C\:\\work\\cap\'s.ass`
	if got != want {
		t.Errorf("escapeFilterPath = %q, want %q", got, want)
	}
}

func TestFFmpegError_Unwrap(t *testing.T) {
	inner := errors.New("exit status 1")
	err := &FFmpegError{Args: []string{"-i", "x"}, Stderr: "boom", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("FFmpegError must unwrap to the underlying error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "boom") || !strings.Contains(msg, "exit status 1") {
		t.Errorf("error message missing detail: %s", msg)
	}
}
