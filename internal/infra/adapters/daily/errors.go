package daily

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized means the configured API key was rejected.
	ErrUnauthorized = errors.New("invalid video provider API key")

	// ErrRateLimited means the provider throttled us; try again later.
	ErrRateLimited = errors.New("too many requests to video provider")
)

// ProviderError covers every other provider-side failure and keeps the
// provider's own message for display.
type ProviderError struct {
	Status int
	Info   string
}

func (e *ProviderError) Error() string {
	if e.Info == "" {
		return fmt.Sprintf("video provider error (status %d)", e.Status)
	}

	return fmt.Sprintf("video provider error (status %d): %s", e.Status, e.Info)
}
