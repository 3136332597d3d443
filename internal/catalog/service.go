package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/keydeck/keydeck-backend/pkg/db/models"
	pkgerrors "github.com/keydeck/keydeck-backend/pkg/errors"
)

// Service answers catalog reads for the bot and the delivery engine.
type Service interface {
	GetProduct(ctx context.Context, storeID, productID uuid.UUID) (*models.Product, error)
	GetVariant(ctx context.Context, storeID, productID, variantID uuid.UUID) (*models.ProductVariant, error)
	ListProducts(ctx context.Context, storeID uuid.UUID) ([]models.Product, error)
	ResolveCoupon(ctx context.Context, storeID uuid.UUID, code string) (*models.Coupon, error)
}

type service struct {
	repo Repository
}

// NewService wires the catalog service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog: repository is required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetProduct(ctx context.Context, storeID, productID uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindProduct(ctx, storeID, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

func (s *service) GetVariant(ctx context.Context, storeID, productID, variantID uuid.UUID) (*models.ProductVariant, error) {
	if _, err := s.GetProduct(ctx, storeID, productID); err != nil {
		return nil, err
	}
	variant, err := s.repo.FindVariant(ctx, productID, variantID)
	if err != nil {
		return nil, err
	}
	if !variant.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
	}
	return variant, nil
}

func (s *service) ListProducts(ctx context.Context, storeID uuid.UUID) ([]models.Product, error) {
	return s.repo.ListProducts(ctx, storeID)
}

// ResolveCoupon validates a code against the store's coupon table. Inactive
// and out-of-range coupons are indistinguishable from missing ones.
func (s *service) ResolveCoupon(ctx context.Context, storeID uuid.UUID, code string) (*models.Coupon, error) {
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}
	coupon, err := s.repo.FindCoupon(ctx, storeID, code)
	if err != nil {
		return nil, err
	}
	if !coupon.IsActive || coupon.Percent < 0 || coupon.Percent > 99 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
	}
	return coupon, nil
}
