// Package job provides the Job aggregate for short-form video generation.
// It includes the Job entity with state machine transitions matching the
// render pipeline stages, as well as repository interfaces for persistence.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/velobit/brainrot-api/internal/job/id"
)

// Variant selects which of the two supported video layouts a job targets.
type Variant string

const (
	// VariantStandard produces a video with intro and outro overlay images.
	VariantStandard Variant = "standard"
	// VariantReddit produces a reddit-post style video with three overlay images.
	VariantReddit Variant = "reddit"
)

// IsValid returns true if the variant is a known layout.
func (v Variant) IsValid() bool {
	return v == VariantStandard || v == VariantReddit
}

// Status represents the current state of a Job.
// Non-terminal states map one-to-one onto render pipeline stages.
type Status string

const (
	// StatusQueued indicates the job is waiting for a free worker slot.
	StatusQueued Status = "QUEUED"
	// StatusFetching indicates remote assets are being resolved.
	StatusFetching Status = "FETCHING"
	// StatusTranscribing indicates the narration audio is being transcribed.
	StatusTranscribing Status = "TRANSCRIBING"
	// StatusPlanning indicates the composition spec is being built.
	StatusPlanning Status = "PLANNING"
	// StatusEncoding indicates the external encoder is rendering the video.
	StatusEncoding Status = "ENCODING"
	// StatusSucceeded indicates the video was produced successfully.
	StatusSucceeded Status = "SUCCEEDED"
	// StatusFailed indicates the job terminated with a failure reason.
	StatusFailed Status = "FAILED"
)

// IsTerminal returns true if the status represents a final state.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// FailureReason is a stable, user-visible code describing why a job failed.
type FailureReason string

const (
	// ReasonInvalidRequest indicates missing or malformed request fields.
	ReasonInvalidRequest FailureReason = "INVALID_REQUEST"
	// ReasonCategoryNotFound indicates an unknown gameplay category.
	ReasonCategoryNotFound FailureReason = "CATEGORY_NOT_FOUND"
	// ReasonAssetFetch indicates a remote asset could not be fetched.
	ReasonAssetFetch FailureReason = "ASSET_FETCH_ERROR"
	// ReasonTranscription indicates the speech-to-text engine failed twice.
	ReasonTranscription FailureReason = "TRANSCRIPTION_ERROR"
	// ReasonPlanning indicates the composition spec could not be built.
	ReasonPlanning FailureReason = "PLANNING_ERROR"
	// ReasonEncoding indicates the encoder failed even with degraded settings.
	ReasonEncoding FailureReason = "ENCODING_ERROR"
	// ReasonInternal covers panics and other unexpected worker failures.
	ReasonInternal FailureReason = "INTERNAL_ERROR"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
// Every non-terminal state may fail; the happy path walks the stages in order.
var validTransitions = map[Status][]Status{
	StatusQueued:       {StatusFetching, StatusFailed},
	StatusFetching:     {StatusTranscribing, StatusFailed},
	StatusTranscribing: {StatusPlanning, StatusFailed},
	StatusPlanning:     {StatusEncoding, StatusFailed},
	StatusEncoding:     {StatusSucceeded, StatusFailed},
	StatusSucceeded:    {},
	StatusFailed:       {},
}

func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Request is the validated input descriptor for one video job.
// Image fields are variant-specific: standard uses IntroImageURL/OutroImageURL,
// reddit uses RedditPostImageURL/FirstImageURL/SecondImageURL.
type Request struct {
	// AudioURL locates the narration audio.
	AudioURL string
	// Category names the gameplay background pool (e.g. "minecraft").
	Category string
	// IntroImageURL is shown near the start (standard variant).
	IntroImageURL string
	// OutroImageURL is shown near the end (standard variant).
	OutroImageURL string
	// RedditPostImageURL is shown first (reddit variant).
	RedditPostImageURL string
	// FirstImageURL is shown at the narration midpoint (reddit variant).
	FirstImageURL string
	// SecondImageURL is shown near the end (reddit variant).
	SecondImageURL string
}

// ImageURLs returns the overlay image URLs in display order for the variant.
func (r Request) ImageURLs(v Variant) []string {
	if v == VariantReddit {
		return []string{r.RedditPostImageURL, r.FirstImageURL, r.SecondImageURL}
	}
	return []string{r.IntroImageURL, r.OutroImageURL}
}

// Job represents one video-generation request in flight or completed.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier, generated at admission.
	ID string
	// Variant is the targeted video layout.
	Variant Variant
	// Request is the validated input descriptor.
	Request Request
	// Status is the current job state.
	Status Status
	// Reason is the failure code, set only when Status is FAILED.
	Reason FailureReason
	// Error carries a short failure description for logs and status queries.
	Error string
	// ResultPath is the output file locator, set only when Status is SUCCEEDED.
	ResultPath string
	// ResultURL is the public download URL when the output was published
	// to external storage, set only when Status is SUCCEEDED.
	ResultURL string
	// CreatedAt is when the job was admitted.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing left the queue.
	StartedAt time.Time
	// CompletedAt is when the job reached a terminal state.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID in QUEUED state.
func New(variant Variant, req Request) *Job {
	now := time.Now()
	return &Job{
		ID:        id.Generate(),
		Variant:   variant,
		Request:   req,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewWithID creates a new Job with the specified ID in QUEUED state.
// Useful for testing or when the ID is externally generated.
func NewWithID(jobID string, variant Variant, req Request) *Job {
	j := New(variant, req)
	j.ID = jobID
	return j
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(status)
}

// transitionLocked performs the transition. Caller holds j.mu.
func (j *Job) transitionLocked(status Status) error {
	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusFetching:
		j.StartedAt = j.UpdatedAt
	case StatusSucceeded, StatusFailed:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Succeed transitions the job to SUCCEEDED and records the result locator
// plus the public URL when the output was published externally (empty
// otherwise). A rejected transition leaves the job untouched.
func (j *Job) Succeed(resultPath, resultURL string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusSucceeded); err != nil {
		return err
	}
	j.ResultPath = resultPath
	j.ResultURL = resultURL
	return nil
}

// Fail transitions the job to FAILED with a reason code and message.
// A rejected transition leaves the job untouched, so failing an
// already-terminal job is a safe no-op.
func (j *Job) Fail(reason FailureReason, errMsg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusFailed); err != nil {
		return err
	}
	j.Reason = reason
	j.Error = errMsg
	return nil
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	return j.GetStatus().IsTerminal()
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:          j.ID,
		Variant:     j.Variant,
		Request:     j.Request,
		Status:      j.Status,
		Reason:      j.Reason,
		Error:       j.Error,
		ResultPath:  j.ResultPath,
		ResultURL:   j.ResultURL,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}
