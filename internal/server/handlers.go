package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/velobit/brainrot-api/internal/job"
	"github.com/velobit/brainrot-api/internal/retention"
	"github.com/velobit/brainrot-api/internal/scheduler"
)

// JobScheduler is the slice of the scheduler the HTTP layer needs.
type JobScheduler interface {
	Submit(ctx context.Context, variant job.Variant, req job.Request) (*job.Job, error)
	Status(ctx context.Context, jobID string) (*job.Job, error)
}

// OutputResolver maps a video locator to its file path, distinguishing
// expired outputs from unknown ones.
type OutputResolver interface {
	Resolve(locator string) (string, error)
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	scheduler JobScheduler
	resolver  OutputResolver
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(sched JobScheduler, resolver OutputResolver, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		scheduler: sched,
		resolver:  resolver,
		validator: validator.New(),
		logger:    logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateVideo handles POST /api/v1/videos requests (standard variant).
func (h *Handlers) CreateVideo(w http.ResponseWriter, r *http.Request) {
	var req CreateVideoRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	h.submit(w, r, job.VariantStandard, job.Request{
		AudioURL:      req.AudioURL,
		Category:      req.Category,
		IntroImageURL: req.IntroImageURL,
		OutroImageURL: req.OutroImageURL,
	})
}

// CreateRedditVideo handles POST /api/v1/videos/reddit requests.
func (h *Handlers) CreateRedditVideo(w http.ResponseWriter, r *http.Request) {
	var req CreateRedditVideoRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	h.submit(w, r, job.VariantReddit, job.Request{
		AudioURL:           req.AudioURL,
		Category:           req.Category,
		RedditPostImageURL: req.PostImageURL,
		FirstImageURL:      req.FirstImageURL,
		SecondImageURL:     req.SecondImageURL,
	})
}

// GetStatus handles GET /api/v1/videos/{id}/status requests.
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	found, err := h.scheduler.Status(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return
	}

	resp := StatusResponse{
		ID:      found.ID,
		Variant: string(found.Variant),
		Status:  string(found.Status),
	}
	switch found.Status {
	case job.StatusSucceeded:
		if found.ResultURL != "" {
			resp.VideoURL = found.ResultURL
		} else {
			resp.VideoURL = "/videos/" + found.ID + ".mp4"
		}
	case job.StatusFailed:
		resp.Reason = string(found.Reason)
		resp.Error = found.Error
	}

	writeJSON(w, http.StatusOK, resp)
}

// ServeVideo handles GET /videos/{file} requests. Expired outputs answer
// 410 so callers can tell "gone forever" from "never existed".
func (h *Handlers) ServeVideo(w http.ResponseWriter, r *http.Request) {
	file := r.PathValue("file")
	locator := strings.TrimSuffix(file, ".mp4")
	if locator == "" {
		writeError(w, http.StatusBadRequest, "video file is required", "MISSING_VIDEO_FILE")
		return
	}

	path, err := h.resolver.Resolve(locator)
	switch {
	case errors.Is(err, retention.ErrExpired):
		writeError(w, http.StatusGone, "video expired", "VIDEO_EXPIRED")
		return
	case errors.Is(err, retention.ErrNotFound):
		writeError(w, http.StatusNotFound, "video not found", "VIDEO_NOT_FOUND")
		return
	case err != nil:
		h.logger.Error("failed to resolve video", slog.String("file", file), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to resolve video", "VIDEO_RESOLVE_FAILED")
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	http.ServeFile(w, r, path)
}

// decodeAndValidate parses the JSON body into dst and validates it,
// answering the request itself on failure.
func (h *Handlers) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

// submit hands the request to the scheduler and answers 202 on admission.
func (h *Handlers) submit(w http.ResponseWriter, r *http.Request, variant job.Variant, req job.Request) {
	created, err := h.scheduler.Submit(r.Context(), variant, req)
	if err != nil {
		switch {
		case errors.Is(err, scheduler.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, err.Error(), "INVALID_REQUEST")
		case errors.Is(err, scheduler.ErrShuttingDown):
			writeError(w, http.StatusServiceUnavailable, "service shutting down", "SHUTTING_DOWN")
		default:
			h.logger.Error("failed to submit job",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to submit job", "JOB_CREATION_FAILED")
		}
		return
	}

	h.logger.Info("job submitted",
		slog.String("job_id", created.ID),
		slog.String("variant", string(variant)),
		slog.String("category", req.Category),
	)

	writeJSON(w, http.StatusAccepted, CreateVideoResponse{
		ID:     created.ID,
		Status: string(created.GetStatus()),
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
