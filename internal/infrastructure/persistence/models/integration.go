package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/possync/backend/internal/domain/sync"
)

// IntegrationModel is the persistence model for the Integration domain entity.
// The syncing column is the durable per-integration lock; it is only toggled
// through conditional updates in the repository.
type IntegrationModel struct {
	ID         uuid.UUID     `gorm:"type:uuid;primary_key"`
	TenantID   uuid.UUID     `gorm:"type:uuid;not null;index:idx_integrations_tenant"`
	Provider   sync.Provider `gorm:"type:varchar(20);not null"`
	Token      string        `gorm:"type:text;not null"`
	StoreID    string        `gorm:"type:varchar(100)"`
	Enabled    bool          `gorm:"not null;default:true"`
	Syncing    bool          `gorm:"not null;default:false"`
	WindowDays int           `gorm:"not null;default:0"`
	CreatedAt  time.Time     `gorm:"not null"`
	UpdatedAt  time.Time     `gorm:"not null"`
}

// TableName returns the table name for GORM
func (IntegrationModel) TableName() string {
	return "integrations"
}

// ToDomain converts the persistence model to a domain Integration entity.
func (m *IntegrationModel) ToDomain() *sync.Integration {
	return &sync.Integration{
		ID:         m.ID,
		TenantID:   m.TenantID,
		Provider:   m.Provider,
		Token:      m.Token,
		StoreID:    m.StoreID,
		Enabled:    m.Enabled,
		Syncing:    m.Syncing,
		WindowDays: m.WindowDays,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain Integration entity.
func (m *IntegrationModel) FromDomain(i *sync.Integration) {
	m.ID = i.ID
	m.TenantID = i.TenantID
	m.Provider = i.Provider
	m.Token = i.Token
	m.StoreID = i.StoreID
	m.Enabled = i.Enabled
	m.Syncing = i.Syncing
	m.WindowDays = i.WindowDays
	m.CreatedAt = i.CreatedAt
	m.UpdatedAt = i.UpdatedAt
}
