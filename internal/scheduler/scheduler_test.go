package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/velobit/brainrot-api/internal/job"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRunner struct {
	mu    sync.Mutex
	order []string

	block    chan struct{} // when non-nil, Run waits on it
	fail     bool
	panicMsg string

	active    int32
	maxActive int32
}

func (r *fakeRunner) Run(_ context.Context, j *job.Job) error {
	cur := atomic.AddInt32(&r.active, 1)
	defer atomic.AddInt32(&r.active, -1)
	for {
		max := atomic.LoadInt32(&r.maxActive)
		if cur <= max || atomic.CompareAndSwapInt32(&r.maxActive, max, cur) {
			break
		}
	}

	r.mu.Lock()
	r.order = append(r.order, j.ID)
	r.mu.Unlock()

	if r.block != nil {
		<-r.block
	}
	if r.panicMsg != "" {
		panic(r.panicMsg)
	}
	if r.fail {
		_ = j.Fail(job.ReasonEncoding, "encode failed")
		return errors.New("encode failed")
	}

	_ = j.TransitionTo(job.StatusFetching)
	_ = j.TransitionTo(job.StatusTranscribing)
	_ = j.TransitionTo(job.StatusPlanning)
	_ = j.TransitionTo(job.StatusEncoding)
	_ = j.Succeed("/videos/"+j.ID+".mp4", "")
	return nil
}

func (r *fakeRunner) started() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

type fakeTracker struct {
	mu      sync.Mutex
	outputs map[string]string
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{outputs: make(map[string]string)}
}

func (t *fakeTracker) Register(locator, path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.outputs[locator] = path
}

func (t *fakeTracker) get(locator string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.outputs[locator]
	return p, ok
}

func validRequest() job.Request {
	return job.Request{
		AudioURL:      "http://assets/narration.mp3",
		Category:      "minecraft",
		IntroImageURL: "http://assets/intro.png",
		OutroImageURL: "http://assets/outro.png",
	}
}

func waitTerminal(t *testing.T, s *Scheduler, jobID string) *job.Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		j, err := s.Status(context.Background(), jobID)
		if err != nil {
			t.Fatalf("Status() error = %v", err)
		}
		if j.Status.IsTerminal() {
			return j
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal state", jobID)
	return nil
}

func TestSubmit_Validation(t *testing.T) {
	s := New(job.NewMemoryRepository(), &fakeRunner{}, newFakeTracker(), 1, discardLogger())
	ctx := context.Background()

	tests := []struct {
		name    string
		variant job.Variant
		mutate  func(*job.Request)
	}{
		{"unknown variant", job.Variant("tiktok"), func(r *job.Request) {}},
		{"missing audio", job.VariantStandard, func(r *job.Request) { r.AudioURL = "" }},
		{"missing category", job.VariantStandard, func(r *job.Request) { r.Category = "" }},
		{"missing outro image", job.VariantStandard, func(r *job.Request) { r.OutroImageURL = "" }},
		{"missing reddit images", job.VariantReddit, func(r *job.Request) {}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			_, err := s.Submit(ctx, tt.variant, req)
			if !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}

func TestSubmit_ConcurrencyCeiling(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	s := New(job.NewMemoryRepository(), runner, newFakeTracker(), 2, discardLogger())
	ctx := context.Background()

	ids := make([]string, 0, 5)
	for range 5 {
		j, err := s.Submit(ctx, job.VariantStandard, validRequest())
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		ids = append(ids, j.ID)
	}

	// Give the first workers time to start; only two may be active.
	deadline := time.Now().Add(time.Second)
	for len(runner.started()) < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := len(runner.started()); got != 2 {
		t.Fatalf("started jobs = %d, want 2 while slots are blocked", got)
	}

	close(runner.block)
	for _, id := range ids {
		waitTerminal(t, s, id)
	}

	if max := atomic.LoadInt32(&runner.maxActive); max > 2 {
		t.Errorf("max simultaneous jobs = %d, exceeds limit 2", max)
	}

	// Queued jobs must start in submission order.
	order := runner.started()
	if len(order) != 5 {
		t.Fatalf("started jobs = %d, want 5", len(order))
	}
	for i, id := range order[2:] {
		if id != ids[i+2] {
			t.Errorf("queued job %d started out of order: got %s, want %s", i, id, ids[i+2])
		}
	}
}

func TestSubmit_SlotReleasedOnFailure(t *testing.T) {
	runner := &fakeRunner{fail: true}
	s := New(job.NewMemoryRepository(), runner, newFakeTracker(), 1, discardLogger())
	ctx := context.Background()

	for range 3 {
		j, err := s.Submit(ctx, job.VariantStandard, validRequest())
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		got := waitTerminal(t, s, j.ID)
		if got.Status != job.StatusFailed {
			t.Errorf("status = %v, want FAILED", got.Status)
		}
	}
}

func TestSubmit_PanicRecovered(t *testing.T) {
	runner := &fakeRunner{panicMsg: "boom"}
	s := New(job.NewMemoryRepository(), runner, newFakeTracker(), 1, discardLogger())
	ctx := context.Background()

	j, err := s.Submit(ctx, job.VariantStandard, validRequest())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	got := waitTerminal(t, s, j.ID)
	if got.Status != job.StatusFailed {
		t.Fatalf("status = %v, want FAILED", got.Status)
	}
	if got.Reason != job.ReasonInternal {
		t.Errorf("reason = %v, want INTERNAL_ERROR", got.Reason)
	}

	// The slot must be free again.
	runner.panicMsg = ""
	j2, err := s.Submit(ctx, job.VariantStandard, validRequest())
	if err != nil {
		t.Fatalf("Submit() after panic error = %v", err)
	}
	if got := waitTerminal(t, s, j2.ID); got.Status != job.StatusSucceeded {
		t.Errorf("status = %v, want SUCCEEDED", got.Status)
	}
}

func TestSubmit_RegistersOutputWithTracker(t *testing.T) {
	tracker := newFakeTracker()
	s := New(job.NewMemoryRepository(), &fakeRunner{}, tracker, 1, discardLogger())

	j, err := s.Submit(context.Background(), job.VariantStandard, validRequest())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitTerminal(t, s, j.ID)

	path, ok := tracker.get(j.ID)
	if !ok {
		t.Fatal("succeeded job not registered with the tracker")
	}
	if path != "/videos/"+j.ID+".mp4" {
		t.Errorf("registered path = %q", path)
	}
}

func TestStatus_NotFound(t *testing.T) {
	s := New(job.NewMemoryRepository(), &fakeRunner{}, newFakeTracker(), 1, discardLogger())

	_, err := s.Status(context.Background(), "vid-missing")
	if !errors.Is(err, job.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestLimit_DefaultsToNumCPU(t *testing.T) {
	s := New(job.NewMemoryRepository(), &fakeRunner{}, newFakeTracker(), 0, discardLogger())
	if s.Limit() < 1 {
		t.Errorf("limit = %d, want >= 1", s.Limit())
	}
}

func TestShutdown_RejectsNewWork(t *testing.T) {
	s := New(job.NewMemoryRepository(), &fakeRunner{}, newFakeTracker(), 1, discardLogger())

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	_, err := s.Submit(context.Background(), job.VariantStandard, validRequest())
	if !errors.Is(err, ErrShuttingDown) {
		t.Errorf("expected ErrShuttingDown, got %v", err)
	}
}
