package job

import (
	"context"
	"testing"
)

func TestMemoryRepository_Save(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	j := New(VariantStandard, testRequest())

	err := repo.Save(ctx, j)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	saved, err := repo.FindByID(ctx, j.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.ID != j.ID {
		t.Errorf("expected ID %s, got %s", j.ID, saved.ID)
	}
}

func TestMemoryRepository_Save_Update(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	j := New(VariantStandard, testRequest())

	_ = repo.Save(ctx, j)

	_ = j.TransitionTo(StatusFetching)
	_ = repo.Save(ctx, j)

	saved, _ := repo.FindByID(ctx, j.ID)
	if saved.Status != StatusFetching {
		t.Errorf("expected status %s, got %s", StatusFetching, saved.Status)
	}
}

func TestMemoryRepository_FindByID_NotFound(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.FindByID(ctx, "nonexistent")
	if err != ErrJobNotFound {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestMemoryRepository_FindByID_ReturnsClone(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	j := New(VariantStandard, testRequest())
	_ = repo.Save(ctx, j)

	found, _ := repo.FindByID(ctx, j.ID)

	// Modify the returned job
	found.ResultPath = "/tmp/hijacked.mp4"
	_ = found.TransitionTo(StatusFetching)

	// Original in repo should be unchanged
	original, _ := repo.FindByID(ctx, j.ID)
	if original.ResultPath != "" {
		t.Error("modifying returned job should not affect repository")
	}
	if original.Status != StatusQueued {
		t.Error("modifying returned job status should not affect repository")
	}
}

func TestMemoryRepository_List(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	jobs, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("expected 0 jobs, got %d", len(jobs))
	}

	_ = repo.Save(ctx, New(VariantStandard, testRequest()))
	_ = repo.Save(ctx, New(VariantReddit, testRequest()))

	jobs, _ = repo.List(ctx)
	if len(jobs) != 2 {
		t.Errorf("expected 2 jobs, got %d", len(jobs))
	}
}

func TestMemoryRepository_Delete(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	j := New(VariantStandard, testRequest())
	_ = repo.Save(ctx, j)

	if err := repo.Delete(ctx, j.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := repo.FindByID(ctx, j.ID); err != ErrJobNotFound {
		t.Errorf("expected ErrJobNotFound after delete, got %v", err)
	}
	if err := repo.Delete(ctx, j.ID); err != ErrJobNotFound {
		t.Errorf("expected ErrJobNotFound for double delete, got %v", err)
	}
}
