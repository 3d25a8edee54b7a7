// Package transcribe provides the common interface for speech-to-text
// engines that produce word-level timestamps. Both the OpenAI Whisper API
// adapter and the local CLI adapter implement this interface.
package transcribe

import (
	"context"
	"errors"

	"github.com/velobit/brainrot-api/internal/caption"
)

// ErrNoAudio is returned when the audio path is empty.
var ErrNoAudio = errors.New("no audio file provided")

// Options contains parameters for one transcription request.
type Options struct {
	// Model is the speech-to-text model to use. Empty means the engine's
	// default.
	Model string
	// Language is an ISO 639-1 hint for the engine. Empty means "en".
	Language string
}

// Engine defines the interface for speech-to-text providers. Implementations
// return the recognized words in start-time order. An audio file with no
// recognizable speech yields an empty slice, not an error.
type Engine interface {
	Transcribe(ctx context.Context, audioPath string, opts Options) ([]caption.Word, error)
}
