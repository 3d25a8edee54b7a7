package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/velobit/brainrot-api/internal/caption"
)

// DefaultOpenAIModel is used when Options.Model is empty.
const DefaultOpenAIModel = openai.Whisper1

// OpenAIEngine transcribes narration audio through the OpenAI Whisper API,
// requesting word-level timestamp granularity.
type OpenAIEngine struct {
	client *openai.Client
	logger *slog.Logger
}

// NewOpenAIEngine creates an OpenAIEngine authenticated with apiKey.
func NewOpenAIEngine(apiKey string, logger *slog.Logger) *OpenAIEngine {
	return &OpenAIEngine{
		client: openai.NewClient(apiKey),
		logger: logger,
	}
}

// Transcribe sends the audio file to Whisper and returns word timestamps.
func (e *OpenAIEngine) Transcribe(ctx context.Context, audioPath string, opts Options) ([]caption.Word, error) {
	if audioPath == "" {
		return nil, ErrNoAudio
	}

	model := opts.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	language := opts.Language
	if language == "" {
		language = "en"
	}

	f, err := os.Open(audioPath) // #nosec G304 - path comes from the pipeline's own temp dir
	if err != nil {
		return nil, fmt.Errorf("open narration audio: %w", err)
	}
	defer func() { _ = f.Close() }()

	resp, err := e.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    model,
		Reader:   f,
		FilePath: filepath.Base(audioPath), // filename hint required by the library
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: language,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularityWord,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("whisper transcription failed: %w", err)
	}

	words := make([]caption.Word, 0, len(resp.Words))
	for _, w := range resp.Words {
		text := strings.TrimSpace(w.Word)
		if text == "" {
			continue
		}
		words = append(words, caption.Word{Text: text, Start: w.Start, End: w.End})
	}

	e.logger.Debug("whisper transcription complete",
		"model", model,
		"words", len(words),
		"duration", resp.Duration,
	)

	return words, nil
}
