package crawler

import "errors"

var (
	// ErrAutomation signals that the browser could not perform a required
	// interaction, typically because the page structure changed.
	ErrAutomation = errors.New("automation error")
	// ErrNetwork signals that a fetch failed after all retries were spent.
	ErrNetwork = errors.New("network error")
	// ErrExtractionMiss signals that a single auxiliary field could not be parsed.
	ErrExtractionMiss = errors.New("extraction miss")
	// ErrStore signals a persistence failure. No partial outcome is written.
	ErrStore = errors.New("store error")
	// ErrStaleElement signals that an element was detached while being read.
	ErrStaleElement = errors.New("stale element")
	// ErrInvalidJobURL signals a result link without a job identifier.
	ErrInvalidJobURL = errors.New("invalid job url")
)
