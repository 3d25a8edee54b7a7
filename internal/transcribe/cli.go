package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/velobit/brainrot-api/internal/caption"
)

// DefaultCLIModel is the whisper CLI model used when Options.Model is empty.
const DefaultCLIModel = "base"

// CLIEngine transcribes narration audio with a local whisper CLI binary.
// The binary must support JSON output with word-level timestamps
// (--output_format json --word_timestamps True).
type CLIEngine struct {
	binPath string
	logger  *slog.Logger
}

// NewCLIEngine creates a CLIEngine. If binPath is empty, it defaults to
// "whisper" (found via PATH).
func NewCLIEngine(binPath string, logger *slog.Logger) *CLIEngine {
	if binPath == "" {
		binPath = "whisper"
	}
	return &CLIEngine{binPath: binPath, logger: logger}
}

// Transcribe runs the whisper CLI on the audio file and parses its JSON
// output into word timestamps.
func (e *CLIEngine) Transcribe(ctx context.Context, audioPath string, opts Options) ([]caption.Word, error) {
	if audioPath == "" {
		return nil, ErrNoAudio
	}

	model := opts.Model
	if model == "" {
		model = DefaultCLIModel
	}
	language := opts.Language
	if language == "" {
		language = "en"
	}

	outDir, err := os.MkdirTemp("", "whisper-*")
	if err != nil {
		return nil, fmt.Errorf("create whisper output dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(outDir) }()

	args := []string{
		audioPath,
		"--model", model,
		"--language", language,
		"--output_format", "json",
		"--output_dir", outDir,
		"--word_timestamps", "True",
	}

	// #nosec G204 - binPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, e.binPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("whisper cancelled: %w", ctx.Err())
		}
		return nil, &CLIError{Args: args, Stderr: stderr.String(), Err: err}
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	resultPath := filepath.Join(outDir, base+".json")
	data, err := os.ReadFile(resultPath) // #nosec G304 - path built from our own temp dir
	if err != nil {
		return nil, fmt.Errorf("read whisper output: %w", err)
	}

	words, err := parseWhisperJSON(data)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("cli transcription complete", "model", model, "words", len(words))
	return words, nil
}

// whisperResult mirrors the whisper CLI JSON output, keeping only the word
// timing fields.
type whisperResult struct {
	Segments []struct {
		Words []struct {
			Word  string  `json:"word"`
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		} `json:"words"`
	} `json:"segments"`
}

// parseWhisperJSON extracts word timestamps from whisper CLI JSON output.
// Output with no recognized words yields an empty slice.
func parseWhisperJSON(data []byte) ([]caption.Word, error) {
	var result whisperResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parse whisper output: %w", err)
	}

	var words []caption.Word
	for _, seg := range result.Segments {
		for _, w := range seg.Words {
			text := strings.TrimSpace(w.Word)
			if text == "" {
				continue
			}
			words = append(words, caption.Word{Text: text, Start: w.Start, End: w.End})
		}
	}
	return words, nil
}

// CLIError represents a whisper CLI failure, including its stderr output.
type CLIError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CLIError) Error() string {
	return fmt.Sprintf("whisper error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *CLIError) Unwrap() error {
	return e.Err
}
