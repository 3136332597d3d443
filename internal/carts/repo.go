package carts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/keydeck/keydeck-backend/internal/repo"
	"github.com/keydeck/keydeck-backend/pkg/db/models"
	"github.com/keydeck/keydeck-backend/pkg/enums"
	pkgerrors "github.com/keydeck/keydeck-backend/pkg/errors"
)

// Repository exposes persistence operations for carts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, cart *models.Cart) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	FindOpenByBuyer(ctx context.Context, storeID uuid.UUID, buyerUserID string) (*models.Cart, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
	// UpdateFieldsIfStatus applies fields only while the cart still holds one
	// of the expected statuses and reports whether a row matched.
	UpdateFieldsIfStatus(ctx context.Context, id uuid.UUID, expected []enums.CartStatus, fields map[string]any) (bool, error)
	ListIdleOpen(ctx context.Context, cutoff time.Time, limit int) ([]models.Cart, error)
}

type repository struct {
	repo.Base
}

// NewRepository builds the GORM-backed cart repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, cart *models.Cart) error {
	if err := r.DB(ctx).Create(cart).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to create cart")
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	if err := r.DB(ctx).First(&cart, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load cart")
	}
	return &cart, nil
}

func (r *repository) FindOpenByBuyer(ctx context.Context, storeID uuid.UUID, buyerUserID string) (*models.Cart, error) {
	var cart models.Cart
	err := r.DB(ctx).
		Where("store_id = ? AND buyer_user_id = ? AND status = ?", storeID, buyerUserID, enums.CartStatusOpen).
		Order("created_at DESC").
		First(&cart).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no open cart for buyer")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load open cart")
	}
	return &cart, nil
}

func (r *repository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	res := r.DB(ctx).Model(&models.Cart{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "failed to update cart")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	return nil
}

func (r *repository) UpdateFieldsIfStatus(ctx context.Context, id uuid.UUID, expected []enums.CartStatus, fields map[string]any) (bool, error) {
	res := r.DB(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND status IN ?", id, expected).
		Updates(fields)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "failed to update cart")
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ListIdleOpen(ctx context.Context, cutoff time.Time, limit int) ([]models.Cart, error) {
	var idle []models.Cart
	err := r.DB(ctx).
		Where("status = ? AND last_activity_at < ?", enums.CartStatusOpen, cutoff).
		Order("last_activity_at ASC").
		Limit(limit).
		Find(&idle).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to list idle carts")
	}
	return idle, nil
}
