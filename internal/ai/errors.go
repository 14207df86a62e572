package ai

import (
	"context"
	"errors"

	"github.com/kiranshivaraju/partscout/pkg/models"
)

var (
	ErrProviderUnavailable = models.ErrProviderUnavailable
	ErrInferenceTimeout    = models.ErrInferenceTimeout
	ErrInvalidResponse     = models.ErrInvalidResponse
	ErrRequestRejected     = models.ErrRequestRejected

	ErrInvalidInput = errors.New("an image or at least one keyword is required")
)

// IsTransient reports whether an AI call error is worth one retry. Rejected requests
// and unusable responses are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrProviderUnavailable) ||
		errors.Is(err, ErrInferenceTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}
