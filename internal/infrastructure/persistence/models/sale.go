package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/possync/backend/internal/domain/sync"
)

// SaleModel is the persistence model for the Sale domain entity. The unique
// index on (store_id, external_id) is what makes re-syncing idempotent.
type SaleModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	ExternalID  string          `gorm:"type:varchar(100);not null;uniqueIndex:uq_sales_store_external,priority:2"`
	StoreID     string          `gorm:"type:varchar(100);not null;uniqueIndex:uq_sales_store_external,priority:1;index:idx_sales_store_date,priority:1"`
	TenantID    uuid.UUID       `gorm:"type:uuid;not null;index:idx_sales_tenant"`
	SaleDate    time.Time       `gorm:"not null;index:idx_sales_store_date,priority:2"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	RawData     string          `gorm:"type:jsonb"`
	CreatedAt   time.Time       `gorm:"not null"`
	UpdatedAt   time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SaleModel) TableName() string {
	return "sales"
}

// ToDomain converts the persistence model to a domain Sale entity.
func (m *SaleModel) ToDomain() *sync.Sale {
	return &sync.Sale{
		ID:          m.ID,
		ExternalID:  m.ExternalID,
		StoreID:     m.StoreID,
		TenantID:    m.TenantID,
		SaleDate:    m.SaleDate.UTC(),
		TotalAmount: m.TotalAmount,
		RawData:     m.RawData,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain Sale entity.
func (m *SaleModel) FromDomain(s *sync.Sale) {
	m.ID = s.ID
	m.ExternalID = s.ExternalID
	m.StoreID = s.StoreID
	m.TenantID = s.TenantID
	m.SaleDate = s.SaleDate.UTC()
	m.TotalAmount = s.TotalAmount
	m.RawData = s.RawData
	m.CreatedAt = s.CreatedAt
	m.UpdatedAt = s.UpdatedAt
}

// SaleModelFromDomain creates a new persistence model from a domain Sale entity.
func SaleModelFromDomain(s *sync.Sale) *SaleModel {
	m := &SaleModel{}
	m.FromDomain(s)
	return m
}
