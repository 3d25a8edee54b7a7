package transcribe

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenAIEngine_EmptyAudioPath(t *testing.T) {
	e := NewOpenAIEngine("test-key", discardLogger())

	_, err := e.Transcribe(context.Background(), "", Options{})
	if !errors.Is(err, ErrNoAudio) {
		t.Errorf("expected ErrNoAudio, got %v", err)
	}
}

func TestCLIEngine_EmptyAudioPath(t *testing.T) {
	e := NewCLIEngine("", discardLogger())

	_, err := e.Transcribe(context.Background(), "", Options{})
	if !errors.Is(err, ErrNoAudio) {
		t.Errorf("expected ErrNoAudio, got %v", err)
	}
}

func TestNewCLIEngine_DefaultBinary(t *testing.T) {
	e := NewCLIEngine("", discardLogger())
	if e.binPath != "whisper" {
		t.Errorf("expected default binary 'whisper', got %q", e.binPath)
	}
}

func TestParseWhisperJSON(t *testing.T) {
	data := []byte(`{
		"text": "hi there friend",
		"segments": [
			{"words": [
				{"word": " hi", "start": 0.0, "end": 0.3},
				{"word": " there", "start": 0.3, "end": 0.6}
			]},
			{"words": [
				{"word": " friend", "start": 1.0, "end": 1.4}
			]}
		]
	}`)

	words, err := parseWhisperJSON(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(words) != 3 {
		t.Fatalf("expected 3 words, got %d", len(words))
	}
	if words[0].Text != "hi" || words[1].Text != "there" || words[2].Text != "friend" {
		t.Errorf("words not trimmed or ordered: %v", words)
	}
	if words[2].Start != 1.0 || words[2].End != 1.4 {
		t.Errorf("timing lost: %+v", words[2])
	}
}

func TestParseWhisperJSON_NoWords(t *testing.T) {
	words, err := parseWhisperJSON([]byte(`{"text": "", "segments": []}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(words) != 0 {
		t.Errorf("expected empty transcript, got %v", words)
	}
}

func TestParseWhisperJSON_Malformed(t *testing.T) {
	if _, err := parseWhisperJSON([]byte(`not json`)); err == nil {
		t.Error("expected parse error")
	}
}

func TestCLIError_Unwrap(t *testing.T) {
	inner := errors.New("exit status 1")
	err := &CLIError{Args: []string{"a.mp3"}, Stderr: "boom", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("CLIError must unwrap to the underlying error")
	}
}
