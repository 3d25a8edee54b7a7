// Package retention tracks finished output files and reclaims them once
// their retention window elapses. A timer-driven sweep runs independently
// of job traffic and shares state with request serving only through the
// tracker itself.
package retention

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Static errors for locator resolution.
var (
	// ErrNotFound is returned for locators that were never tracked.
	ErrNotFound = errors.New("retention: output not tracked")
	// ErrExpired is returned for locators whose file was reclaimed.
	ErrExpired = errors.New("retention: output expired")
)

// orphanAge is how old a stray temp file must be before a sweep removes it.
const orphanAge = time.Hour

type record struct {
	path      string
	createdAt time.Time
	expired   bool
	expiredAt time.Time
}

// Config tunes the sweeper.
type Config struct {
	// Window is how long a finished output stays available.
	Window time.Duration
	// Interval is the pause between sweep passes.
	Interval time.Duration
	// TempDir, when set, is also swept for orphaned work files left behind
	// by crashed renders.
	TempDir string
}

// Tracker owns the lifecycle of finished output files. Expired entries stay
// behind as tombstones so a late fetch gets a distinct "expired" answer
// instead of a generic not-found.
type Tracker struct {
	mu      sync.Mutex
	records map[string]*record

	cfg    Config
	logger *slog.Logger
	stop   chan struct{}
	done   chan struct{}
}

// NewTracker creates a Tracker. Start must be called to begin sweeping.
func NewTracker(cfg Config, logger *slog.Logger) *Tracker {
	return &Tracker{
		records: make(map[string]*record),
		cfg:     cfg,
		logger:  logger,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Register starts tracking a finished output file under the given locator.
func (t *Tracker) Register(locator, path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records[locator] = &record{path: path, createdAt: time.Now()}
}

// Resolve maps a locator to its file path. Returns ErrExpired once the
// retention window has reclaimed the file, ErrNotFound for unknown locators.
func (t *Tracker) Resolve(locator string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[locator]
	if !ok {
		return "", ErrNotFound
	}
	if rec.expired {
		return "", ErrExpired
	}
	return rec.path, nil
}

// Len returns the number of live (non-tombstone) tracked outputs.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, rec := range t.records {
		if !rec.expired {
			n++
		}
	}
	return n
}

// Start launches the background sweep loop. Stop terminates it.
func (t *Tracker) Start() {
	go func() {
		defer close(t.done)
		ticker := time.NewTicker(t.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				t.Sweep(time.Now())
			case <-t.stop:
				return
			}
		}
	}()
}

// Stop terminates the sweep loop and waits for the current pass to finish.
func (t *Tracker) Stop() {
	close(t.stop)
	<-t.done
}

// Sweep performs one reclamation pass: outputs past the retention window
// are deleted and replaced with tombstones. Deletion failures are logged
// and skipped; the next pass retries them.
func (t *Tracker) Sweep(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for locator, rec := range t.records {
		if rec.expired {
			// Tombstones answer "expired" for one more window, then the
			// locator falls back to plain not-found and the map entry goes.
			if now.Sub(rec.expiredAt) > t.cfg.Window {
				delete(t.records, locator)
			}
			continue
		}
		if now.Sub(rec.createdAt) <= t.cfg.Window {
			continue
		}
		if err := os.Remove(rec.path); err != nil && !os.IsNotExist(err) {
			t.logger.Warn("reclaim output failed, will retry",
				"locator", locator, "path", rec.path, "error", err)
			continue
		}
		t.logger.Info("output reclaimed", "locator", locator, "path", rec.path)
		rec.expired = true
		rec.expiredAt = now
		rec.path = ""
	}

	t.sweepOrphans(now)
}

// sweepOrphans removes stray files in the temp dir older than orphanAge.
// Live render work dirs are younger than that by construction.
func (t *Tracker) sweepOrphans(now time.Time) {
	if t.cfg.TempDir == "" {
		return
	}

	entries, err := os.ReadDir(t.cfg.TempDir)
	if err != nil {
		t.logger.Warn("list temp dir", "dir", t.cfg.TempDir, "error", err)
		return
	}

	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= orphanAge {
			continue
		}
		path := filepath.Join(t.cfg.TempDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			t.logger.Warn("remove orphaned temp file", "path", path, "error", err)
			continue
		}
		t.logger.Info("orphaned temp file removed", "path", path)
	}
}
