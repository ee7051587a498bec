package persistence

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/possync/backend/internal/domain/sync"
	"github.com/possync/backend/internal/infrastructure/persistence/models"
)

// payloadPreviewLimit bounds the payload snapshot stored with each error row
const payloadPreviewLimit = 2048

// GormRunLedger implements sync.RunLedger using GORM
type GormRunLedger struct {
	db *gorm.DB
}

// NewGormRunLedger creates a new GormRunLedger
func NewGormRunLedger(db *gorm.DB) *GormRunLedger {
	return &GormRunLedger{db: db}
}

// CreateRun inserts the run in the RUNNING state
func (l *GormRunLedger) CreateRun(ctx context.Context, run *sync.SyncRun) error {
	var model models.SyncRunModel
	model.FromDomain(run)
	return l.db.WithContext(ctx).Create(&model).Error
}

// UpdateProgress overwrites the run's counters and last-called URL. The status
// guard makes it a no-op for finalized runs.
func (l *GormRunLedger) UpdateProgress(ctx context.Context, runID uuid.UUID, p sync.Progress) error {
	return l.db.WithContext(ctx).
		Model(&models.SyncRunModel{}).
		Where("id = ? AND status = ?", runID, sync.RunStatusRunning).
		Updates(map[string]any{
			"total_requests":      p.TotalRequests,
			"total_before_filter": p.TotalBeforeFilter,
			"total_after_filter":  p.TotalAfterFilter,
			"synced":              p.Synced,
			"error_count":         p.ErrorCount,
			"last_url":            p.LastURL,
		}).Error
}

// AppendError attaches one error row to the run, truncating oversized payloads
func (l *GormRunLedger) AppendError(ctx context.Context, runID uuid.UUID, message, payload string) error {
	if len(payload) > payloadPreviewLimit {
		// Cut on a rune boundary; a split multi-byte sequence is invalid
		// UTF-8 and Postgres text rejects it.
		cut := payloadPreviewLimit
		for cut > 0 && !utf8.RuneStart(payload[cut]) {
			cut--
		}
		payload = payload[:cut]
	}
	model := models.SyncErrorModel{
		ID:             uuid.New(),
		RunID:          runID,
		Message:        message,
		PayloadPreview: payload,
		CreatedAt:      time.Now().UTC(),
	}
	return l.db.WithContext(ctx).Create(&model).Error
}

// ArchivePage stores the raw body of one fetched page
func (l *GormRunLedger) ArchivePage(ctx context.Context, runID uuid.UUID, pageIndex int, payload []byte) error {
	model := models.RawPageModel{
		ID:        uuid.New(),
		RunID:     runID,
		PageIndex: pageIndex,
		Payload:   string(payload),
		CreatedAt: time.Now().UTC(),
	}
	return l.db.WithContext(ctx).Create(&model).Error
}

// FinalizeRun moves the run to a terminal status exactly once. The status
// guard in the WHERE clause is what enforces exactly-once: a second finalize
// matches zero rows and reports ErrRunFinalized.
func (l *GormRunLedger) FinalizeRun(ctx context.Context, runID uuid.UUID, status sync.RunStatus, message string, endedAt time.Time) error {
	if !status.IsValid() || !status.IsTerminal() {
		return errors.New("persistence: finalize requires a terminal status")
	}

	result := l.db.WithContext(ctx).
		Model(&models.SyncRunModel{}).
		Where("id = ? AND status = ?", runID, sync.RunStatusRunning).
		Updates(map[string]any{
			"status":   status,
			"message":  message,
			"ended_at": endedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Either the run does not exist or it is already terminal.
		var count int64
		if err := l.db.WithContext(ctx).
			Model(&models.SyncRunModel{}).
			Where("id = ?", runID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return sync.ErrRunNotFound
		}
		return sync.ErrRunFinalized
	}
	return nil
}

// GetRun returns one run by id
func (l *GormRunLedger) GetRun(ctx context.Context, runID uuid.UUID) (*sync.SyncRun, error) {
	var model models.SyncRunModel
	if err := l.db.WithContext(ctx).First(&model, "id = ?", runID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sync.ErrRunNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListRunsByIntegration returns the most recent runs for an integration, newest first
func (l *GormRunLedger) ListRunsByIntegration(ctx context.Context, integrationID uuid.UUID, limit int) ([]sync.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}

	var modelList []models.SyncRunModel
	if err := l.db.WithContext(ctx).
		Where("integration_id = ?", integrationID).
		Order("started_at DESC").
		Limit(limit).
		Find(&modelList).Error; err != nil {
		return nil, err
	}

	runs := make([]sync.SyncRun, len(modelList))
	for i := range modelList {
		runs[i] = *modelList[i].ToDomain()
	}
	return runs, nil
}

// ListErrors returns the error rows attached to a run
func (l *GormRunLedger) ListErrors(ctx context.Context, runID uuid.UUID) ([]sync.SyncError, error) {
	var modelList []models.SyncErrorModel
	if err := l.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("created_at ASC").
		Find(&modelList).Error; err != nil {
		return nil, err
	}

	errs := make([]sync.SyncError, len(modelList))
	for i := range modelList {
		errs[i] = *modelList[i].ToDomain()
	}
	return errs, nil
}

// Ensure GormRunLedger implements sync.RunLedger
var _ sync.RunLedger = (*GormRunLedger)(nil)
