package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/possync/backend/internal/domain/sync"
)

// SyncRunModel is the persistence model for the SyncRun audit record.
type SyncRunModel struct {
	ID                uuid.UUID      `gorm:"type:uuid;primary_key"`
	IntegrationID     uuid.UUID      `gorm:"type:uuid;not null;index:idx_sync_runs_integration"`
	TenantID          uuid.UUID      `gorm:"type:uuid;not null;index:idx_sync_runs_tenant"`
	StoreID           string         `gorm:"type:varchar(100);not null"`
	Status            sync.RunStatus `gorm:"type:varchar(20);not null;index:idx_sync_runs_status"`
	WindowStart       time.Time      `gorm:"not null"`
	WindowEnd         time.Time      `gorm:"not null"`
	LastURL           string         `gorm:"type:text"`
	Message           string         `gorm:"type:text"`
	TotalRequests     int            `gorm:"not null;default:0"`
	TotalBeforeFilter int            `gorm:"not null;default:0"`
	TotalAfterFilter  int            `gorm:"not null;default:0"`
	Synced            int            `gorm:"not null;default:0"`
	ErrorCount        int            `gorm:"not null;default:0"`
	StartedAt         time.Time      `gorm:"not null"`
	EndedAt           *time.Time
}

// TableName returns the table name for GORM
func (SyncRunModel) TableName() string {
	return "sync_runs"
}

// ToDomain converts the persistence model to a domain SyncRun entity.
func (m *SyncRunModel) ToDomain() *sync.SyncRun {
	return &sync.SyncRun{
		ID:                m.ID,
		IntegrationID:     m.IntegrationID,
		TenantID:          m.TenantID,
		StoreID:           m.StoreID,
		Status:            m.Status,
		WindowStart:       m.WindowStart,
		WindowEnd:         m.WindowEnd,
		LastURL:           m.LastURL,
		Message:           m.Message,
		TotalRequests:     m.TotalRequests,
		TotalBeforeFilter: m.TotalBeforeFilter,
		TotalAfterFilter:  m.TotalAfterFilter,
		Synced:            m.Synced,
		ErrorCount:        m.ErrorCount,
		StartedAt:         m.StartedAt,
		EndedAt:           m.EndedAt,
	}
}

// FromDomain populates the persistence model from a domain SyncRun entity.
func (m *SyncRunModel) FromDomain(r *sync.SyncRun) {
	m.ID = r.ID
	m.IntegrationID = r.IntegrationID
	m.TenantID = r.TenantID
	m.StoreID = r.StoreID
	m.Status = r.Status
	m.WindowStart = r.WindowStart
	m.WindowEnd = r.WindowEnd
	m.LastURL = r.LastURL
	m.Message = r.Message
	m.TotalRequests = r.TotalRequests
	m.TotalBeforeFilter = r.TotalBeforeFilter
	m.TotalAfterFilter = r.TotalAfterFilter
	m.Synced = r.Synced
	m.ErrorCount = r.ErrorCount
	m.StartedAt = r.StartedAt
	m.EndedAt = r.EndedAt
}

// SyncErrorModel is the persistence model for per-run error rows. Append-only.
type SyncErrorModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key"`
	RunID          uuid.UUID `gorm:"type:uuid;not null;index:idx_sync_errors_run"`
	Message        string    `gorm:"type:text;not null"`
	PayloadPreview string    `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SyncErrorModel) TableName() string {
	return "sync_errors"
}

// ToDomain converts the persistence model to a domain SyncError entity.
func (m *SyncErrorModel) ToDomain() *sync.SyncError {
	return &sync.SyncError{
		ID:             m.ID,
		RunID:          m.RunID,
		Message:        m.Message,
		PayloadPreview: m.PayloadPreview,
		CreatedAt:      m.CreatedAt,
	}
}

// RawPageModel is the persistence model for archived raw pages. Append-only.
type RawPageModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	RunID     uuid.UUID `gorm:"type:uuid;not null;index:idx_raw_pages_run"`
	PageIndex int       `gorm:"not null"`
	// text, not jsonb: malformed upstream bodies are archived verbatim
	Payload string `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (RawPageModel) TableName() string {
	return "raw_pages"
}

// ToDomain converts the persistence model to a domain RawPage entity.
func (m *RawPageModel) ToDomain() *sync.RawPage {
	return &sync.RawPage{
		ID:        m.ID,
		RunID:     m.RunID,
		PageIndex: m.PageIndex,
		Payload:   m.Payload,
		CreatedAt: m.CreatedAt,
	}
}
