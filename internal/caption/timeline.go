// Package caption converts word-level transcripts into display timelines
// and renders them as ASS subtitle tracks for burn-in.
package caption

import (
	"sort"
	"strings"
)

// Word is one transcribed word with its timing from the speech-to-text engine.
type Word struct {
	// Text is the spoken word.
	Text string
	// Start is the offset in seconds from narration start.
	Start float64
	// End is the offset in seconds where the word finishes.
	End float64
}

// Event is one caption to display: a word or a short merged word-group.
type Event struct {
	// Text is the display text.
	Text string
	// Start is the display start offset in seconds.
	Start float64
	// End is the display end offset in seconds.
	End float64
}

// Options tunes how words are merged into display events.
type Options struct {
	// MergeGap is the maximum silence between words that still merges them
	// into one event. Avoids caption flicker on rapid speech.
	MergeGap float64
	// MaxChars caps the combined text length of a merged event.
	MaxChars int
}

// DefaultOptions returns the merge tuning used in production.
func DefaultOptions() Options {
	return Options{
		MergeGap: 0.15,
		MaxChars: 24,
	}
}

// Build converts a transcript into an ordered, non-overlapping sequence of
// caption events. Words are sorted by start time (stable, preserving input
// order for equal starts), adjacent words with a small enough gap are merged
// while the combined text stays under MaxChars, and the final event is
// clamped so it never outlasts the narration. An empty transcript yields an
// empty timeline, not an error.
func Build(words []Word, narrationDur float64, opts Options) []Event {
	if len(words) == 0 {
		return nil
	}
	if opts.MaxChars <= 0 {
		opts = DefaultOptions()
	}

	sorted := make([]Word, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	// Words with no visible text never seed or join an event.
	first := 0
	for first < len(sorted) && strings.TrimSpace(sorted[first].Text) == "" {
		first++
	}
	if first == len(sorted) {
		return nil
	}

	var events []Event
	cur := Event{
		Text:  strings.TrimSpace(sorted[first].Text),
		Start: sorted[first].Start,
		End:   sorted[first].End,
	}

	for _, w := range sorted[first+1:] {
		text := strings.TrimSpace(w.Text)
		if text == "" {
			continue
		}
		gap := w.Start - cur.End
		merged := cur.Text + " " + text
		if gap >= 0 && gap < opts.MergeGap && len(merged) <= opts.MaxChars {
			cur.Text = merged
			if w.End > cur.End {
				cur.End = w.End
			}
			continue
		}
		events = append(events, cur)
		cur = Event{Text: text, Start: w.Start, End: w.End}
	}
	events = append(events, cur)

	return clamp(events, narrationDur)
}

// clamp enforces the timeline invariants: non-decreasing starts, no overlap
// between consecutive events, and no event past the narration end.
func clamp(events []Event, narrationDur float64) []Event {
	out := events[:0]
	for i := range events {
		e := events[i]
		if e.Start < 0 {
			e.Start = 0
		}
		if i+1 < len(events) && e.End > events[i+1].Start {
			e.End = events[i+1].Start
		}
		if narrationDur > 0 && e.End > narrationDur {
			e.End = narrationDur
		}
		if narrationDur > 0 && e.Start >= narrationDur {
			break
		}
		if e.End <= e.Start {
			continue
		}
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
