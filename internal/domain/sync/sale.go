package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sale is the persisted business entity produced by a sync run. Its natural
// key is (StoreID, ExternalID); re-syncing the same window updates rows in
// place instead of duplicating them.
type Sale struct {
	// ID is the local surrogate identifier
	ID uuid.UUID
	// ExternalID is the provider's own identifier for the sale
	ExternalID string
	// StoreID is the provider-side store the sale belongs to
	StoreID string
	// TenantID is the tenant that owns the integration
	TenantID uuid.UUID
	// SaleDate is the sale instant in UTC
	SaleDate time.Time
	// TotalAmount is the sale total, fixed at two fractional digits
	TotalAmount decimal.Decimal
	// RawData is the original provider record (JSON)
	RawData string
	// CreatedAt is when this sale was first seen locally
	CreatedAt time.Time
	// UpdatedAt is when this sale was last refreshed
	UpdatedAt time.Time
}

// SaleRepository persists sales keyed by (store id, external id).
type SaleRepository interface {
	// UpsertBatch writes one page of sales as a single all-or-nothing batch.
	// Existing rows (same natural key) have sale_date, total_amount, raw_data
	// and updated_at refreshed; key and tenant association are left untouched.
	UpsertBatch(ctx context.Context, sales []*Sale) error

	// FindByNaturalKey returns one sale by (store id, external id).
	FindByNaturalKey(ctx context.Context, storeID, externalID string) (*Sale, error)

	// CountByStore returns the number of sales stored for a store.
	CountByStore(ctx context.Context, storeID string) (int64, error)
}
