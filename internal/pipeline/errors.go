// Package pipeline defines the error taxonomy shared by the ingestion stages
// and the orchestrator. The orchestrator's retry decision is a pure function
// of these sentinels: anything not marked permanent is retried with backoff.
package pipeline

import "errors"

var (
	// ErrUnsupportedFormat is returned by the parser for content types it has
	// no handler for. Not retryable.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrCorruptInput is returned by the parser when the file cannot be read
	// as its declared format. Not retryable.
	ErrCorruptInput = errors.New("corrupt input")

	// ErrInvalidInput marks malformed input rejected by a provider or stage.
	// Not retryable.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited marks an embedding-provider rate limit. Retryable with
	// backoff.
	ErrRateLimited = errors.New("rate limited")

	// ErrProviderUnavailable marks a transient embedding-provider outage.
	// Retryable with backoff.
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// Retryable reports whether err represents a transient condition worth
// re-scheduling. Unknown errors are treated as transient infrastructure
// failures (network blips, storage write errors) and retried; only errors
// explicitly classified as bad input are permanent.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, ErrUnsupportedFormat),
		errors.Is(err, ErrCorruptInput),
		errors.Is(err, ErrInvalidInput):
		return false
	default:
		return true
	}
}
