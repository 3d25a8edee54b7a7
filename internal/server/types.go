// Package server provides the HTTP surface for the video generation API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

// CreateVideoRequest is the HTTP request body for a standard-variant video.
type CreateVideoRequest struct {
	// AudioURL locates the narration audio.
	AudioURL string `json:"audio_url" validate:"required"`
	// Category names the gameplay background pool.
	Category string `json:"category" validate:"required"`
	// IntroImageURL is shown near the start.
	IntroImageURL string `json:"intro_image_url" validate:"required"`
	// OutroImageURL is shown near the end.
	OutroImageURL string `json:"outro_image_url" validate:"required"`
}

// CreateRedditVideoRequest is the HTTP request body for a reddit-style video.
type CreateRedditVideoRequest struct {
	// AudioURL locates the narration audio.
	AudioURL string `json:"audio_url" validate:"required"`
	// Category names the gameplay background pool.
	Category string `json:"category" validate:"required"`
	// PostImageURL is the reddit post screenshot shown first.
	PostImageURL string `json:"post_image_url" validate:"required"`
	// FirstImageURL is shown at the narration midpoint.
	FirstImageURL string `json:"first_image_url" validate:"required"`
	// SecondImageURL is shown near the end.
	SecondImageURL string `json:"second_image_url" validate:"required"`
}

// CreateVideoResponse is the HTTP response after submitting a video job.
type CreateVideoResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// StatusResponse is the HTTP response for a job status query.
type StatusResponse struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// Variant is the requested video layout.
	Variant string `json:"variant"`
	// Status is the current job state.
	Status string `json:"status"`
	// Reason is the stable failure code, present only for failed jobs.
	Reason string `json:"reason,omitempty"`
	// Error is a short failure description, present only for failed jobs.
	Error string `json:"error,omitempty"`
	// VideoURL locates the finished video, present only for succeeded jobs.
	VideoURL string `json:"video_url,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
