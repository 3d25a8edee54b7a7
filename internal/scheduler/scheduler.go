// Package scheduler is the admission-control core: it validates incoming
// requests, enforces the render concurrency ceiling, queues excess work in
// FIFO order, and hands finished outputs to the retention tracker.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/velobit/brainrot-api/internal/job"
)

// Static errors for job submission.
var (
	// ErrInvalidRequest is returned when a submission fails validation.
	ErrInvalidRequest = errors.New("scheduler: invalid request")
	// ErrShuttingDown is returned for submissions after Shutdown started.
	ErrShuttingDown = errors.New("scheduler: shutting down")
)

// Runner executes one admitted job to a terminal state.
// The render pipeline implements this interface.
type Runner interface {
	Run(ctx context.Context, j *job.Job) error
}

// Tracker receives successful outputs for retention tracking.
type Tracker interface {
	Register(locator, path string)
}

// Scheduler admits jobs up to a fixed concurrency limit and queues the rest.
// Queued jobs start in submission order as slots free up. A worker slot is
// always released when its job terminates, including on panic.
type Scheduler struct {
	repo     job.Repository
	runner   Runner
	tracker  Tracker
	validate *validator.Validate
	logger   *slog.Logger

	mu      sync.Mutex
	limit   int
	running int
	queue   []*job.Job
	closed  bool

	wg sync.WaitGroup
}

// New creates a Scheduler. A non-positive limit resolves to the number of
// CPUs, once, at construction.
func New(repo job.Repository, runner Runner, tracker Tracker, limit int, logger *slog.Logger) *Scheduler {
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	return &Scheduler{
		repo:     repo,
		runner:   runner,
		tracker:  tracker,
		validate: validator.New(),
		logger:   logger,
		limit:    limit,
	}
}

// Limit returns the resolved concurrency ceiling.
func (s *Scheduler) Limit() int {
	return s.limit
}

// Submit validates the request, persists a new queued job and either starts
// it immediately or appends it to the FIFO wait queue. The returned job is
// live; read it through Status for consistent snapshots.
func (s *Scheduler) Submit(ctx context.Context, variant job.Variant, req job.Request) (*job.Job, error) {
	if err := s.validateRequest(variant, req); err != nil {
		return nil, err
	}

	j := job.New(variant, req)
	if err := s.repo.Save(ctx, j); err != nil {
		return nil, fmt.Errorf("persist job: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrShuttingDown
	}
	if s.running < s.limit {
		s.running++
		s.mu.Unlock()
		s.start(j)
	} else {
		s.queue = append(s.queue, j)
		queued := len(s.queue)
		s.mu.Unlock()
		s.logger.Info("job queued", "job_id", j.ID, "variant", variant, "queue_depth", queued)
	}

	return j, nil
}

// Status returns a consistent snapshot of the job, or job.ErrJobNotFound.
func (s *Scheduler) Status(ctx context.Context, jobID string) (*job.Job, error) {
	return s.repo.FindByID(ctx, jobID)
}

// Shutdown stops admitting work and waits for running jobs to finish or the
// context to expire. Queued jobs that never started stay QUEUED.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler shutdown: %w", ctx.Err())
	}
}

func (s *Scheduler) validateRequest(variant job.Variant, req job.Request) error {
	if !variant.IsValid() {
		return fmt.Errorf("%w: unknown variant %q", ErrInvalidRequest, variant)
	}
	if err := s.validate.Var(req.AudioURL, "required"); err != nil {
		return fmt.Errorf("%w: audio locator is required", ErrInvalidRequest)
	}
	if err := s.validate.Var(req.Category, "required"); err != nil {
		return fmt.Errorf("%w: category is required", ErrInvalidRequest)
	}
	for i, img := range req.ImageURLs(variant) {
		if err := s.validate.Var(img, "required"); err != nil {
			return fmt.Errorf("%w: image %d is required for the %s variant", ErrInvalidRequest, i+1, variant)
		}
	}
	return nil
}

// start runs the job on a fresh goroutine. The caller has already claimed a
// worker slot.
func (s *Scheduler) start(j *job.Job) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.releaseSlot()
		s.runOne(j)
	}()
}

// runOne executes the job and registers its output on success. A panic in
// the runner marks the job failed instead of crashing the process.
func (s *Scheduler) runOne(j *job.Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("worker panic", "job_id", j.ID, "panic", r)
			// Failing an already-terminal job is a no-op.
			_ = j.Fail(job.ReasonInternal, fmt.Sprintf("worker panic: %v", r))
			_ = s.repo.Save(context.Background(), j)
		}
	}()

	if err := s.runner.Run(context.Background(), j); err != nil {
		return
	}
	if snapshot := j.Clone(); snapshot.Status == job.StatusSucceeded {
		s.tracker.Register(snapshot.ID, snapshot.ResultPath)
	}
}

// releaseSlot frees a worker slot and, when the wait queue is non-empty,
// hands the slot straight to the oldest queued job.
func (s *Scheduler) releaseSlot() {
	s.mu.Lock()
	if len(s.queue) > 0 && !s.closed {
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		s.start(next)
		return
	}
	s.running--
	s.mu.Unlock()
}
