package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/possync/backend/internal/domain/sync"
	"github.com/possync/backend/internal/infrastructure/persistence/models"
)

// GormSaleRepository implements sync.SaleRepository using GORM
type GormSaleRepository struct {
	db *gorm.DB
}

// NewGormSaleRepository creates a new GormSaleRepository
func NewGormSaleRepository(db *gorm.DB) *GormSaleRepository {
	return &GormSaleRepository{db: db}
}

// UpsertBatch writes one page of sales in a single transaction. Conflicts on
// the (store_id, external_id) natural key refresh the mutable columns and
// leave identity and tenant association untouched.
func (r *GormSaleRepository) UpsertBatch(ctx context.Context, sales []*sync.Sale) error {
	if len(sales) == 0 {
		return nil
	}

	// Offset-paginated feeds can repeat a record within one page. Postgres
	// rejects a multi-row ON CONFLICT DO UPDATE that touches the same target
	// row twice, so the batch is deduplicated here; the last occurrence wins.
	type naturalKey struct{ storeID, externalID string }
	seen := make(map[naturalKey]int, len(sales))
	deduped := make([]*sync.Sale, 0, len(sales))
	for _, sale := range sales {
		key := naturalKey{sale.StoreID, sale.ExternalID}
		if i, ok := seen[key]; ok {
			deduped[i] = sale
			continue
		}
		seen[key] = len(deduped)
		deduped = append(deduped, sale)
	}

	now := time.Now().UTC()
	modelList := make([]models.SaleModel, len(deduped))
	for i, sale := range deduped {
		if sale.ID == uuid.Nil {
			sale.ID = uuid.New()
		}
		modelList[i] = *models.SaleModelFromDomain(sale)
		modelList[i].CreatedAt = now
		modelList[i].UpdatedAt = now
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "store_id"}, {Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"sale_date", "total_amount", "raw_data", "updated_at",
			}),
		}).Create(&modelList).Error
	})
}

// FindByNaturalKey returns one sale by (store id, external id)
func (r *GormSaleRepository) FindByNaturalKey(ctx context.Context, storeID, externalID string) (*sync.Sale, error) {
	var model models.SaleModel
	if err := r.db.WithContext(ctx).
		Where("store_id = ? AND external_id = ?", storeID, externalID).
		First(&model).Error; err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// CountByStore returns the number of sales stored for a store
func (r *GormSaleRepository) CountByStore(ctx context.Context, storeID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.SaleModel{}).
		Where("store_id = ?", storeID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure GormSaleRepository implements sync.SaleRepository
var _ sync.SaleRepository = (*GormSaleRepository)(nil)
