package stock

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/keydeck/keydeck-backend/internal/repo"
	"github.com/keydeck/keydeck-backend/pkg/db/models"
	pkgerrors "github.com/keydeck/keydeck-backend/pkg/errors"
)

// Repository exposes persistence operations for stock pool buckets.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListBucket(ctx context.Context, storeID, productID uuid.UUID, bucket string, limit int) ([]models.StockItem, error)
	CountBuckets(ctx context.Context, storeID, productID uuid.UUID, buckets []string) (int64, error)
	DeleteItems(ctx context.Context, ids []uuid.UUID) (int64, error)
	Insert(ctx context.Context, items []models.StockItem) error
	MaxPosition(ctx context.Context, storeID, productID uuid.UUID, bucket string) (int64, error)
}

type repository struct {
	repo.Base
}

// NewRepository builds the GORM-backed stock repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(tx)}
}

// ListBucket returns up to limit items from one bucket in insertion order.
func (r *repository) ListBucket(ctx context.Context, storeID, productID uuid.UUID, bucket string, limit int) ([]models.StockItem, error) {
	var items []models.StockItem
	err := r.DB(ctx).
		Where("store_id = ? AND product_id = ? AND bucket = ?", storeID, productID, bucket).
		Order("position ASC, created_at ASC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to list stock bucket")
	}
	return items, nil
}

func (r *repository) CountBuckets(ctx context.Context, storeID, productID uuid.UUID, buckets []string) (int64, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.StockItem{}).
		Where("store_id = ? AND product_id = ? AND bucket IN ?", storeID, productID, buckets).
		Count(&count).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to count stock")
	}
	return count, nil
}

// DeleteItems removes the given rows and reports how many were actually
// deleted so callers can detect a concurrent draw.
func (r *repository) DeleteItems(ctx context.Context, ids []uuid.UUID) (int64, error) {
	res := r.DB(ctx).Where("id IN ?", ids).Delete(&models.StockItem{})
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "failed to delete stock items")
	}
	return res.RowsAffected, nil
}

func (r *repository) Insert(ctx context.Context, items []models.StockItem) error {
	if len(items) == 0 {
		return nil
	}
	if err := r.DB(ctx).Create(&items).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to insert stock items")
	}
	return nil
}

func (r *repository) MaxPosition(ctx context.Context, storeID, productID uuid.UUID, bucket string) (int64, error) {
	var max *int64
	err := r.DB(ctx).
		Model(&models.StockItem{}).
		Where("store_id = ? AND product_id = ? AND bucket = ?", storeID, productID, bucket).
		Select("MAX(position)").
		Scan(&max).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to read stock position")
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}
