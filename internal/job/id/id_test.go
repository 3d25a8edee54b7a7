package id

import (
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	got := Generate()

	if !strings.HasPrefix(got, "vid-") {
		t.Errorf("expected prefix vid-, got %s", got)
	}
	if len(got) != len("vid-")+36 {
		t.Errorf("unexpected ID length: %d (%s)", len(got), got)
	}
}

func TestGenerate_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := Generate()
		if seen[id] {
			t.Fatalf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}
