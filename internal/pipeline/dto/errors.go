package dto

import "errors"

// Failure classes for external calls. Per-item failures are isolated
// and logged; none of these aborts a run.
var (
	// ErrFetchTransient marks a network/timeout failure for one
	// source. The source is skipped this run.
	ErrFetchTransient = errors.New("transient fetch error")

	// ErrFetchPermanent marks an invalid feed or a hard HTTP error.
	// The source is flagged unhealthy.
	ErrFetchPermanent = errors.New("permanent fetch error")

	// ErrAnalysisTransient marks a rate-limit or timeout from the
	// analysis capability. Retried with backoff.
	ErrAnalysisTransient = errors.New("transient analysis error")

	// ErrAnalysisValidation marks a malformed or incomplete analysis
	// response. Retried like a transient, but exhausting retries
	// records a permanent failure on the article.
	ErrAnalysisValidation = errors.New("analysis validation error")
)
