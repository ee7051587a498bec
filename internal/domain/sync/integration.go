package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Provider
// ---------------------------------------------------------------------------

// Provider identifies the point-of-sale provider an integration talks to.
type Provider string

const (
	// ProviderEverest is the Everest POS platform, currently the only
	// supported sales provider.
	ProviderEverest Provider = "EVEREST"
)

// IsValid returns true if the provider is one this engine can sync from.
func (p Provider) IsValid() bool {
	return p == ProviderEverest
}

// String returns the string representation of Provider.
func (p Provider) String() string {
	return string(p)
}

// ---------------------------------------------------------------------------
// Integration
// ---------------------------------------------------------------------------

// Integration is a tenant's configured connection to the upstream provider.
// The record itself is owned by the credential management surface; the sync
// engine only reads it and toggles the Syncing flag.
type Integration struct {
	// ID is the unique identifier of the integration
	ID uuid.UUID
	// TenantID is the tenant that owns this integration
	TenantID uuid.UUID
	// Provider identifies the upstream POS provider
	Provider Provider
	// Token is the bearer token used against the provider API
	Token string
	// StoreID is the provider-side store this integration syncs
	StoreID string
	// Enabled gates whether the integration may sync at all
	Enabled bool
	// Syncing is the durable per-integration mutex. It is only ever toggled
	// through an atomic conditional update, never read-then-write.
	Syncing bool
	// WindowDays is how many calendar days (including today) scheduled runs
	// cover. Zero means the configured default.
	WindowDays int
	// CreatedAt is when this integration was created
	CreatedAt time.Time
	// UpdatedAt is when this integration was last updated
	UpdatedAt time.Time
}

// ---------------------------------------------------------------------------
// IntegrationRepository
// ---------------------------------------------------------------------------

// IntegrationRepository is the read/lock interface the engine needs over the
// externally-owned integration records.
type IntegrationRepository interface {
	// FindByID returns one integration by id, or ErrIntegrationNotFound.
	FindByID(ctx context.Context, id uuid.UUID) (*Integration, error)

	// FindDue returns the enabled integrations eligible for a scheduled run.
	FindDue(ctx context.Context) ([]Integration, error)

	// TryAcquireSyncLock performs a single conditional update setting
	// syncing=true only where it is currently false, and reports whether the
	// caller won the lock. Implementations must issue one atomic statement;
	// two concurrent callers must never both observe success.
	TryAcquireSyncLock(ctx context.Context, id uuid.UUID) (bool, error)

	// ReleaseSyncLock sets syncing=false unconditionally.
	ReleaseSyncLock(ctx context.Context, id uuid.UUID) error
}
