package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/possync/backend/internal/domain/sync"
	"github.com/possync/backend/internal/infrastructure/persistence/models"
)

// GormIntegrationRepository implements sync.IntegrationRepository using GORM
type GormIntegrationRepository struct {
	db *gorm.DB
}

// NewGormIntegrationRepository creates a new GormIntegrationRepository
func NewGormIntegrationRepository(db *gorm.DB) *GormIntegrationRepository {
	return &GormIntegrationRepository{db: db}
}

// FindByID finds an integration by its ID
func (r *GormIntegrationRepository) FindByID(ctx context.Context, id uuid.UUID) (*sync.Integration, error) {
	var model models.IntegrationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sync.ErrIntegrationNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindDue returns the enabled integrations eligible for a scheduled run.
// Integrations mid-sync are excluded; each still re-checks the lock through
// TryAcquireSyncLock before doing any work.
func (r *GormIntegrationRepository) FindDue(ctx context.Context) ([]sync.Integration, error) {
	var modelList []models.IntegrationModel
	if err := r.db.WithContext(ctx).
		Where("enabled = ? AND syncing = ?", true, false).
		Order("created_at ASC").
		Find(&modelList).Error; err != nil {
		return nil, err
	}

	integrations := make([]sync.Integration, len(modelList))
	for i := range modelList {
		integrations[i] = *modelList[i].ToDomain()
	}
	return integrations, nil
}

// TryAcquireSyncLock flips syncing to true in one conditional update and
// reports whether this caller won. The WHERE clause carries the previous
// value, so two concurrent callers can never both see RowsAffected == 1.
func (r *GormIntegrationRepository) TryAcquireSyncLock(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.IntegrationModel{}).
		Where("id = ? AND syncing = ?", id, false).
		Updates(map[string]any{
			"syncing":    true,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ReleaseSyncLock sets syncing back to false unconditionally
func (r *GormIntegrationRepository) ReleaseSyncLock(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.IntegrationModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"syncing":    false,
			"updated_at": time.Now().UTC(),
		}).Error
}

// Ensure GormIntegrationRepository implements sync.IntegrationRepository
var _ sync.IntegrationRepository = (*GormIntegrationRepository)(nil)
