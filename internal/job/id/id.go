// Package id provides unique identifier generation for video jobs.
package id

import (
	"github.com/google/uuid"
)

// Generate creates a new unique job ID.
// Format: vid-<uuid>
// Example: vid-7f9c24e8-3b2a-4f5d-9e1c-8a6b5d4c3f2e
func Generate() string {
	return "vid-" + uuid.NewString()
}
