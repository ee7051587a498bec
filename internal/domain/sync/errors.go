package sync

import "errors"

var (
	// Integration / configuration errors. These terminate a sync before any
	// network call is made.
	ErrIntegrationNotFound  = errors.New("sync: integration not found")
	ErrIntegrationDisabled  = errors.New("sync: integration disabled")
	ErrProviderNotSupported = errors.New("sync: integration provider not supported")
	ErrMissingStoreID       = errors.New("sync: no store id configured for integration")
	ErrInvalidWindow        = errors.New("sync: window start must not be after end")

	// ErrSyncInProgress is the lock-contention outcome. It is a normal
	// "already running" result, not a fault.
	ErrSyncInProgress = errors.New("sync: a sync is already in progress for this integration")

	// Upstream errors.
	ErrUpstreamDown      = errors.New("sync: upstream service unavailable")
	ErrMalformedResponse = errors.New("sync: malformed upstream response")

	// ErrPageFailed marks a single page that could not be fetched after all
	// retry attempts but does not poison the rest of the run.
	ErrPageFailed = errors.New("sync: page fetch failed")

	// ErrSuspiciousPage marks a page whose contents pattern-match synthetic or
	// corrupted data. A run that hits one is aborted rather than risk writing
	// fabricated sales figures.
	ErrSuspiciousPage = errors.New("sync: page looks like mocked or corrupted data")

	// Run ledger errors.
	ErrRunNotFound  = errors.New("sync: run not found")
	ErrRunFinalized = errors.New("sync: run already finalized")
)
