// Package models contains shared data models used across the PartScout codebase.
package models

import (
	"context"
	"errors"
)

// AIProvider is the core interface that all AI integrations must implement.
// Never call specific AI providers directly; always inject this interface.
type AIProvider interface {
	// Analyze sends the image and/or keywords to the model and returns its raw report text.
	Analyze(ctx context.Context, in AnalysisInput) (string, error)
	// Name returns the provider identifier (e.g., "gemini", "openai").
	Name() string
}

// Provider errors. Providers wrap one of these so callers can classify failures
// without knowing which vendor produced them.
var (
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	ErrInferenceTimeout    = errors.New("ai inference timeout")
	ErrInvalidResponse     = errors.New("ai provider returned invalid response")
	ErrRequestRejected     = errors.New("ai provider rejected request")
)

// AnalysisInput is the input to one AI identification call.
type AnalysisInput struct {
	Image    []byte
	MIMEType string
	Keywords []string
}

// HasImage reports whether the input carries image bytes.
func (in AnalysisInput) HasImage() bool {
	return len(in.Image) > 0
}
