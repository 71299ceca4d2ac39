package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers both missing rows and listings that no longer exist
	// upstream.
	ErrNotFound = errors.New("not found")

	// ErrNotConfigured means the listing provider has no credentials. Never
	// retried automatically.
	ErrNotConfigured = errors.New("listing provider not configured")

	// ErrSyncInProgress is returned when a sync run is requested while another
	// run holds the job lock.
	ErrSyncInProgress = errors.New("sync job already in progress")
)

// ProviderError is a non-OK, non-empty-result status from the listing provider.
type ProviderError struct {
	Status string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("listing provider error: %s", e.Status)
}
