// Package background selects gameplay background clips and music tracks.
// Categories are an open registry: a category is any registered Source,
// and the default setup discovers one DirSource per subdirectory of the
// background directory, so adding a category needs no code change.
package background

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Static errors for clip selection.
var (
	// ErrCategoryNotFound is returned for an unknown gameplay category.
	ErrCategoryNotFound = errors.New("background: gameplay category not found")
	// ErrNoClips is returned when a category directory holds no clip files.
	ErrNoClips = errors.New("background: no clips available")
	// ErrNoMusic is returned when the music directory holds no tracks.
	ErrNoMusic = errors.New("background: no music tracks available")
)

// clipExtensions are the clip container formats the selector recognizes.
var clipExtensions = map[string]bool{
	".mp4":  true,
	".webm": true,
	".mov":  true,
}

// musicExtensions are the music formats the selector recognizes.
var musicExtensions = map[string]bool{
	".mp3": true,
	".m4a": true,
	".wav": true,
}

// Source enumerates the clip files available for one category.
type Source interface {
	List() ([]string, error)
}

// DirSource lists media files with the given extensions from one directory.
type DirSource struct {
	dir  string
	exts map[string]bool
}

// NewDirSource creates a DirSource over dir matching the given extensions
// (lowercase, with leading dot).
func NewDirSource(dir string, exts map[string]bool) *DirSource {
	return &DirSource{dir: dir, exts: exts}
}

// List returns the matching file paths in dir, sorted for determinism.
func (s *DirSource) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if s.exts[strings.ToLower(filepath.Ext(entry.Name()))] {
			files = append(files, filepath.Join(s.dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Selection is one picked clip plus one music track.
type Selection struct {
	// ClipPath is the chosen background gameplay clip.
	ClipPath string
	// MusicPath is the chosen background music track.
	MusicPath string
}

// Library maps gameplay category names to clip sources and picks clips
// and music pseudo-randomly, avoiding back-to-back repeats per category.
type Library struct {
	mu       sync.Mutex
	sources  map[string]Source
	music    Source
	rng      *rand.Rand
	lastClip map[string]string
}

// NewLibrary creates a Library with the given music source and seed.
func NewLibrary(music Source, seed int64) *Library {
	return &Library{
		sources:  make(map[string]Source),
		music:    music,
		rng:      rand.New(rand.NewSource(seed)),
		lastClip: make(map[string]string),
	}
}

// Register adds or replaces the clip source for a category.
func (l *Library) Register(category string, src Source) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sources[category] = src
}

// HasCategory reports whether a category is registered.
func (l *Library) HasCategory(category string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.sources[category]
	return ok
}

// Categories returns the registered category names, sorted.
func (l *Library) Categories() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.sources))
	for name := range l.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select picks one clip from the category's pool and one music track from
// the global music set. Selection is independent per call; concurrent jobs
// may share a clip since only a read-only time window of it is used.
// When a category has more than one clip, the immediately previous pick is
// avoided so back-to-back jobs don't look identical.
func (l *Library) Select(category string) (Selection, error) {
	l.mu.Lock()
	src, ok := l.sources[category]
	l.mu.Unlock()
	if !ok {
		return Selection{}, fmt.Errorf("%w: %q", ErrCategoryNotFound, category)
	}

	clips, err := src.List()
	if err != nil {
		return Selection{}, err
	}
	if len(clips) == 0 {
		return Selection{}, fmt.Errorf("%w: category %q", ErrNoClips, category)
	}

	tracks, err := l.music.List()
	if err != nil {
		return Selection{}, err
	}
	if len(tracks) == 0 {
		return Selection{}, ErrNoMusic
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	clip := clips[l.rng.Intn(len(clips))]
	if len(clips) > 1 && clip == l.lastClip[category] {
		// Re-roll once away from the previous pick: shift by a random
		// non-zero offset within the pool.
		idx := (indexOf(clips, clip) + 1 + l.rng.Intn(len(clips)-1)) % len(clips)
		clip = clips[idx]
	}
	l.lastClip[category] = clip

	return Selection{
		ClipPath:  clip,
		MusicPath: tracks[l.rng.Intn(len(tracks))],
	}, nil
}

// ChooseWindow picks the time window to use from a clip of clipDur seconds
// when need seconds of background are required. If the clip is long enough,
// a random start offset is chosen; otherwise the clip starts at zero and
// loops seamlessly (the encoder replays it from the start).
func (l *Library) ChooseWindow(clipDur, need float64) (offset float64, loop bool) {
	if clipDur <= need {
		return 0, true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.Float64() * (clipDur - need), false
}

// DiscoverCategories registers one DirSource per subdirectory of backgroundDir.
func (l *Library) DiscoverCategories(backgroundDir string) error {
	entries, err := os.ReadDir(backgroundDir)
	if err != nil {
		return fmt.Errorf("discover categories: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			l.Register(entry.Name(), NewDirSource(filepath.Join(backgroundDir, entry.Name()), clipExtensions))
		}
	}
	return nil
}

// NewMusicSource creates the source for the global music directory.
func NewMusicSource(musicDir string) Source {
	return NewDirSource(musicDir, musicExtensions)
}

func indexOf(items []string, want string) int {
	for i, s := range items {
		if s == want {
			return i
		}
	}
	return 0
}
