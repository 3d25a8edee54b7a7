package background

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// staticSource is a test Source with a fixed clip list.
type staticSource struct {
	clips []string
	err   error
}

func (s *staticSource) List() ([]string, error) {
	return s.clips, s.err
}

func newTestLibrary(clips []string) *Library {
	lib := NewLibrary(&staticSource{clips: []string{"music/track1.mp3", "music/track2.mp3"}}, 42)
	lib.Register("minecraft", &staticSource{clips: clips})
	return lib
}

func TestLibrary_Select(t *testing.T) {
	lib := newTestLibrary([]string{"bg/a.mp4", "bg/b.mp4", "bg/c.webm"})

	sel, err := lib.Select("minecraft")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sel.ClipPath == "" || sel.MusicPath == "" {
		t.Errorf("incomplete selection: %+v", sel)
	}
}

func TestLibrary_Select_UnknownCategory(t *testing.T) {
	lib := newTestLibrary([]string{"bg/a.mp4"})

	_, err := lib.Select("nonexistent")
	if !errors.Is(err, ErrCategoryNotFound) {
		t.Errorf("expected ErrCategoryNotFound, got %v", err)
	}
}

func TestLibrary_Select_EmptyCategory(t *testing.T) {
	lib := newTestLibrary(nil)

	_, err := lib.Select("minecraft")
	if !errors.Is(err, ErrNoClips) {
		t.Errorf("expected ErrNoClips, got %v", err)
	}
}

func TestLibrary_Select_NoMusic(t *testing.T) {
	lib := NewLibrary(&staticSource{}, 1)
	lib.Register("minecraft", &staticSource{clips: []string{"bg/a.mp4"}})

	_, err := lib.Select("minecraft")
	if !errors.Is(err, ErrNoMusic) {
		t.Errorf("expected ErrNoMusic, got %v", err)
	}
}

func TestLibrary_Select_AvoidsImmediateRepeat(t *testing.T) {
	lib := newTestLibrary([]string{"bg/a.mp4", "bg/b.mp4", "bg/c.mp4"})

	prev := ""
	for i := 0; i < 50; i++ {
		sel, err := lib.Select("minecraft")
		if err != nil {
			t.Fatal(err)
		}
		if sel.ClipPath == prev {
			t.Fatalf("iteration %d picked the same clip twice in a row: %s", i, sel.ClipPath)
		}
		prev = sel.ClipPath
	}
}

func TestLibrary_Select_SingleClipMayRepeat(t *testing.T) {
	lib := newTestLibrary([]string{"bg/only.mp4"})

	for i := 0; i < 3; i++ {
		sel, err := lib.Select("minecraft")
		if err != nil {
			t.Fatal(err)
		}
		if sel.ClipPath != "bg/only.mp4" {
			t.Errorf("got %s", sel.ClipPath)
		}
	}
}

func TestLibrary_ChooseWindow(t *testing.T) {
	lib := newTestLibrary([]string{"bg/a.mp4"})

	t.Run("long clip gets random offset", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			offset, loop := lib.ChooseWindow(300, 60)
			if loop {
				t.Fatal("long clip should not need looping")
			}
			if offset < 0 || offset > 240 {
				t.Fatalf("offset %.2f out of range", offset)
			}
		}
	})

	t.Run("short clip loops from start", func(t *testing.T) {
		offset, loop := lib.ChooseWindow(30, 60)
		if !loop {
			t.Error("short clip must loop")
		}
		if offset != 0 {
			t.Errorf("expected offset 0, got %.2f", offset)
		}
	})
}

func TestDirSource_List(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"one.mp4", "two.webm", "three.MOV", "readme.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0750); err != nil {
		t.Fatal(err)
	}

	files, err := NewDirSource(dir, clipExtensions).List()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 3 {
		t.Errorf("expected 3 clips, got %d: %v", len(files), files)
	}
}

func TestLibrary_DiscoverCategories(t *testing.T) {
	dir := t.TempDir()
	for _, cat := range []string{"minecraft", "subway"} {
		if err := os.MkdirAll(filepath.Join(dir, cat), 0750); err != nil {
			t.Fatal(err)
		}
	}

	lib := NewLibrary(&staticSource{}, 1)
	if err := lib.DiscoverCategories(dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, cat := range []string{"minecraft", "subway"} {
		if !lib.HasCategory(cat) {
			t.Errorf("expected category %q to be registered", cat)
		}
	}
	if lib.HasCategory("fortnite") {
		t.Error("unexpected category registered")
	}
}
