package carts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/keydeck/keydeck-backend/internal/catalog"
	"github.com/keydeck/keydeck-backend/pkg/db/models"
	"github.com/keydeck/keydeck-backend/pkg/enums"
	pkgerrors "github.com/keydeck/keydeck-backend/pkg/errors"
	"github.com/keydeck/keydeck-backend/pkg/logger"
)

// UpsertInput captures a buyer picking a variant from the storefront.
type UpsertInput struct {
	StoreID     uuid.UUID
	BuyerUserID string
	ChannelID   string
	ProductID   uuid.UUID
	VariantID   uuid.UUID
	Quantity    int
}

// Service manages cart selection and lifecycle up to checkout.
type Service interface {
	Upsert(ctx context.Context, input UpsertInput) (*models.Cart, error)
	Get(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	SetQuantity(ctx context.Context, cartID uuid.UUID, quantity int) (*models.Cart, error)
	ApplyCoupon(ctx context.Context, cartID uuid.UUID, code string) (*models.Cart, error)
	ClearCoupon(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	TouchActivity(ctx context.Context, cartID uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	tx      txRunner
	repo    Repository
	catalog catalog.Service
	logg    *logger.Logger
}

// NewService wires the cart service.
func NewService(tx txRunner, repo Repository, catalogSvc catalog.Service, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("carts: tx runner is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("carts: repository is required")
	}
	if catalogSvc == nil {
		return nil, fmt.Errorf("carts: catalog service is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("carts: logger is required")
	}
	return &service{tx: tx, repo: repo, catalog: catalogSvc, logg: logg}, nil
}

// Upsert points the buyer's open cart at the chosen variant, creating the
// cart if none is open. Switching variants resets quantity and discount.
func (s *service) Upsert(ctx context.Context, input UpsertInput) (*models.Cart, error) {
	if input.BuyerUserID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer is required")
	}
	if input.Quantity <= 0 {
		input.Quantity = 1
	}
	if _, err := s.catalog.GetVariant(ctx, input.StoreID, input.ProductID, input.VariantID); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindOpenByBuyer(ctx, input.StoreID, input.BuyerUserID)
	if err != nil {
		if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return nil, err
		}
		cart := &models.Cart{
			ID:             uuid.New(),
			StoreID:        input.StoreID,
			BuyerUserID:    input.BuyerUserID,
			ChannelID:      input.ChannelID,
			ProductID:      input.ProductID,
			VariantID:      input.VariantID,
			Quantity:       input.Quantity,
			Status:         enums.CartStatusOpen,
			LastActivityAt: time.Now().UTC(),
		}
		if err := s.repo.Create(ctx, cart); err != nil {
			return nil, err
		}
		logCtx := s.logg.WithFields(ctx, map[string]any{"cart_id": cart.ID.String(), "store_id": input.StoreID.String()})
		s.logg.Info(logCtx, "cart opened")
		return cart, nil
	}

	fields := map[string]any{
		"product_id":       input.ProductID,
		"variant_id":       input.VariantID,
		"quantity":         input.Quantity,
		"last_activity_at": time.Now().UTC(),
	}
	if existing.VariantID != input.VariantID {
		fields["discount_percent"] = 0
	}
	if input.ChannelID != "" {
		fields["channel_id"] = input.ChannelID
	}
	if err := s.repo.UpdateFields(ctx, existing.ID, fields); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, existing.ID)
}

func (s *service) Get(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	return s.repo.FindByID(ctx, cartID)
}

func (s *service) SetQuantity(ctx context.Context, cartID uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return s.mutateOpen(ctx, cartID, map[string]any{"quantity": quantity})
}

// ApplyCoupon resolves a store coupon code and stamps its percent on the cart.
func (s *service) ApplyCoupon(ctx context.Context, cartID uuid.UUID, code string) (*models.Cart, error) {
	cart, err := s.repo.FindByID(ctx, cartID)
	if err != nil {
		return nil, err
	}
	coupon, err := s.catalog.ResolveCoupon(ctx, cart.StoreID, code)
	if err != nil {
		return nil, err
	}
	return s.mutateOpen(ctx, cartID, map[string]any{"discount_percent": coupon.Percent})
}

func (s *service) ClearCoupon(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	return s.mutateOpen(ctx, cartID, map[string]any{"discount_percent": 0})
}

// TouchActivity resets the idle clock; the reaper only expires carts whose
// last activity predates the idle cutoff.
func (s *service) TouchActivity(ctx context.Context, cartID uuid.UUID) error {
	updated, err := s.repo.UpdateFieldsIfStatus(ctx, cartID,
		[]enums.CartStatus{enums.CartStatusOpen, enums.CartStatusPending},
		map[string]any{"last_activity_at": time.Now().UTC()})
	if err != nil {
		return err
	}
	if !updated {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	return nil
}

// mutateOpen applies fields to a cart that is still open, bumping activity.
func (s *service) mutateOpen(ctx context.Context, cartID uuid.UUID, fields map[string]any) (*models.Cart, error) {
	fields["last_activity_at"] = time.Now().UTC()
	var out *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		cart, err := txRepo.FindByID(ctx, cartID)
		if err != nil {
			return err
		}
		if cart.Status != enums.CartStatusOpen {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cart can no longer be edited").
				WithDetails(map[string]any{"status": cart.Status.String()})
		}
		if err := txRepo.UpdateFields(ctx, cartID, fields); err != nil {
			return err
		}
		out, err = txRepo.FindByID(ctx, cartID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
