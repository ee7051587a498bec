package sync

import "time"

// Summary is the outcome of one Sync invocation. Every failure mode of the
// engine is communicated through it; the orchestrator never returns an error
// to its caller.
type Summary struct {
	// Success is false for lock contention, configuration errors and aborted
	// runs alike; Message distinguishes them.
	Success bool
	// Synced is the number of sales successfully upserted
	Synced int
	// Errors is the number of SyncError rows recorded
	Errors int
	// TotalBeforeFilter counts raw records seen across all pages
	TotalBeforeFilter int
	// TotalAfterFilter counts records surviving the window re-filter
	TotalAfterFilter int
	// TotalRequests counts pages requested upstream
	TotalRequests int
	// Period is the requested window
	Period Window
	// LastURL is the last upstream URL called, if any
	LastURL string
	// StartedAt / EndedAt bound the invocation
	StartedAt time.Time
	EndedAt   time.Time
	// Message carries a human-readable reason when Success is false
	Message string
}
