package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Run Status
// ---------------------------------------------------------------------------

// RunStatus represents the lifecycle state of a sync run.
type RunStatus string

const (
	// RunStatusRunning is the sole non-terminal state
	RunStatusRunning RunStatus = "RUNNING"
	// RunStatusSuccess indicates the run completed normally
	RunStatusSuccess RunStatus = "SUCCESS"
	// RunStatusError indicates the run was aborted by a fault
	RunStatusError RunStatus = "ERROR"
	// RunStatusCancelled indicates the run was stopped by its caller
	RunStatusCancelled RunStatus = "CANCELLED"
)

// IsValid returns true if the status is valid.
func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusRunning, RunStatusSuccess, RunStatusError, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal returns true once a run may no longer be mutated.
func (s RunStatus) IsTerminal() bool {
	return s != RunStatusRunning
}

// String returns the string representation of RunStatus.
func (s RunStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// SyncRun
// ---------------------------------------------------------------------------

// SyncRun is the audit record of one sync attempt. One row is created per
// invocation that passes the configuration checks; it is mutated page by page
// and finalized exactly once.
type SyncRun struct {
	// ID is the unique identifier of the run
	ID uuid.UUID
	// IntegrationID references the integration being synced
	IntegrationID uuid.UUID
	// TenantID is the tenant that owns the integration
	TenantID uuid.UUID
	// StoreID is the effective store identifier used for the run
	StoreID string
	// Status is RUNNING until finalized
	Status RunStatus
	// WindowStart / WindowEnd are the requested bounds (inclusive)
	WindowStart time.Time
	WindowEnd   time.Time
	// LastURL is the most recent upstream URL called
	LastURL string
	// Message carries the failure reason for ERROR/CANCELLED runs
	Message string
	// Cumulative counters, updated after every page
	TotalRequests     int
	TotalBeforeFilter int
	TotalAfterFilter  int
	Synced            int
	ErrorCount        int
	// StartedAt / EndedAt bound the run in wall-clock time
	StartedAt time.Time
	EndedAt   *time.Time
}

// NewSyncRun creates a run in the RUNNING state for the given integration.
func NewSyncRun(integration *Integration, storeID string, window Window, now time.Time) *SyncRun {
	return &SyncRun{
		ID:            uuid.New(),
		IntegrationID: integration.ID,
		TenantID:      integration.TenantID,
		StoreID:       storeID,
		Status:        RunStatusRunning,
		WindowStart:   window.Start,
		WindowEnd:     window.End,
		StartedAt:     now,
	}
}

// Progress is the consistent counter snapshot written after each page.
type Progress struct {
	TotalRequests     int
	TotalBeforeFilter int
	TotalAfterFilter  int
	Synced            int
	ErrorCount        int
	LastURL           string
}

// ---------------------------------------------------------------------------
// SyncError / RawPage
// ---------------------------------------------------------------------------

// SyncError is one recoverable-but-notable failure attached to a run.
// Append-only.
type SyncError struct {
	ID uuid.UUID
	// RunID references the owning run
	RunID uuid.UUID
	// Message is a human-readable description of the fault
	Message string
	// PayloadPreview is a truncated snapshot of the offending payload
	PayloadPreview string
	CreatedAt      time.Time
}

// RawPage is an archival snapshot of exactly what the upstream returned for
// one page, written before any filtering. Append-only, kept for replay and
// debugging.
type RawPage struct {
	ID uuid.UUID
	// RunID references the owning run
	RunID uuid.UUID
	// PageIndex is the zero-based fetch order of the page
	PageIndex int
	// Payload is the raw response body
	Payload   string
	CreatedAt time.Time
}

// ---------------------------------------------------------------------------
// RunLedger
// ---------------------------------------------------------------------------

// RunLedger records runs, their errors and their raw pages. It is a passive
// recorder: it never retries and never makes control-flow decisions.
type RunLedger interface {
	// CreateRun inserts the run in the RUNNING state.
	CreateRun(ctx context.Context, run *SyncRun) error

	// UpdateProgress overwrites the run's counters and last-called URL with a
	// consistent snapshot. No-op for finalized runs.
	UpdateProgress(ctx context.Context, runID uuid.UUID, p Progress) error

	// AppendError attaches one error row to the run. Implementations bound
	// the payload preview so storage cannot grow without limit.
	AppendError(ctx context.Context, runID uuid.UUID, message, payload string) error

	// ArchivePage stores the raw body of one fetched page.
	ArchivePage(ctx context.Context, runID uuid.UUID, pageIndex int, payload []byte) error

	// FinalizeRun moves the run to a terminal status exactly once, recording
	// the end timestamp and an optional message. Finalizing an already
	// terminal run returns ErrRunFinalized.
	FinalizeRun(ctx context.Context, runID uuid.UUID, status RunStatus, message string, endedAt time.Time) error

	// GetRun returns one run by id, or ErrRunNotFound.
	GetRun(ctx context.Context, runID uuid.UUID) (*SyncRun, error)

	// ListRunsByIntegration returns the most recent runs for an integration,
	// newest first.
	ListRunsByIntegration(ctx context.Context, integrationID uuid.UUID, limit int) ([]SyncRun, error)

	// ListErrors returns the error rows attached to a run.
	ListErrors(ctx context.Context, runID uuid.UUID) ([]SyncError, error)
}

// PageArchiver mirrors raw pages to secondary long-term storage. Mirror
// failures are logged and swallowed by callers; they never abort a run.
type PageArchiver interface {
	ArchivePage(ctx context.Context, runID uuid.UUID, pageIndex int, payload []byte) error
}
