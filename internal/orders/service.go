package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/keydeck/keydeck-backend/internal/carts"
	"github.com/keydeck/keydeck-backend/internal/catalog"
	"github.com/keydeck/keydeck-backend/internal/delivery"
	"github.com/keydeck/keydeck-backend/pkg/db/models"
	"github.com/keydeck/keydeck-backend/pkg/enums"
	pkgerrors "github.com/keydeck/keydeck-backend/pkg/errors"
	"github.com/keydeck/keydeck-backend/pkg/logger"
	"github.com/keydeck/keydeck-backend/pkg/pix"
)

// PaymentGateway creates charges against the configured PIX provider.
type PaymentGateway interface {
	CreateCharge(ctx context.Context, amountCents int, description string, metadata map[string]string) (*pix.Charge, error)
	Provider() string
}

// CheckoutResult bundles the order with the payment artefacts the bot shows
// the buyer.
type CheckoutResult struct {
	Order     *models.Order
	QRCode    string
	CopyPaste string
}

// Service owns the order lifecycle from checkout to cancellation.
type Service interface {
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Checkout(ctx context.Context, cartID uuid.UUID) (*CheckoutResult, error)
	ConfirmByStaff(ctx context.Context, cartID uuid.UUID, actorID string, note *string) (delivery.Result, error)
	CancelCart(ctx context.Context, cartID uuid.UUID, actorID string) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	tx       txRunner
	repo     Repository
	carts    carts.Repository
	catalog  catalog.Service
	locks    *ConfirmationLocks
	pipeline *delivery.Pipeline
	gateway  PaymentGateway
	logg     *logger.Logger
}

// NewService wires the order service. The gateway may be nil when the store
// runs on manual confirmation only.
func NewService(
	tx txRunner,
	repo Repository,
	cartRepo carts.Repository,
	catalogSvc catalog.Service,
	locks *ConfirmationLocks,
	pipeline *delivery.Pipeline,
	gateway PaymentGateway,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("orders: tx runner is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders: repository is required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("orders: cart repository is required")
	}
	if catalogSvc == nil {
		return nil, fmt.Errorf("orders: catalog service is required")
	}
	if locks == nil {
		return nil, fmt.Errorf("orders: confirmation locks are required")
	}
	if pipeline == nil {
		return nil, fmt.Errorf("orders: delivery pipeline is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("orders: logger is required")
	}
	return &service{
		tx:       tx,
		repo:     repo,
		carts:    cartRepo,
		catalog:  catalogSvc,
		locks:    locks,
		pipeline: pipeline,
		gateway:  gateway,
		logg:     logg,
	}, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.repo.FindByID(ctx, orderID)
}

// grossCents prices the cart: variant price times quantity, minus the
// cart's discount percent, rounded to the nearest cent.
func grossCents(priceCents int, quantity, discountPercent int) int {
	gross := decimal.NewFromInt(int64(priceCents)).
		Mul(decimal.NewFromInt(int64(quantity))).
		Mul(decimal.NewFromInt(int64(100 - discountPercent))).
		Div(decimal.NewFromInt(100)).
		Round(0)
	return int(gross.IntPart())
}

// ensureOrder returns the cart's live order, creating one when none exists.
// A cart keeps reusing the same order across repeated confirmations.
func (s *service) ensureOrder(ctx context.Context, cart *models.Cart, provider enums.PaymentProvider) (*models.Order, error) {
	if existing, err := s.repo.FindLiveByCartID(ctx, cart.ID); err == nil {
		return existing, nil
	} else if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		return nil, err
	}

	variant, err := s.catalog.GetVariant(ctx, cart.StoreID, cart.ProductID, cart.VariantID)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:              uuid.New(),
		CartID:          cart.ID,
		StoreID:         cart.StoreID,
		ProductID:       cart.ProductID,
		VariantID:       cart.VariantID,
		Quantity:        cart.Quantity,
		GrossCents:      grossCents(variant.PriceCents, cart.Quantity, cart.DiscountPercent),
		Status:          enums.OrderStatusPending,
		PaymentProvider: provider,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.Create(ctx, order); err != nil {
			return err
		}
		if err := txRepo.AppendEvent(ctx, order.ID, enums.OrderEventCreated, map[string]any{
			"gross_cents": order.GrossCents,
			"provider":    provider.String(),
		}); err != nil {
			return err
		}
		_, err := s.carts.WithTx(tx).UpdateFieldsIfStatus(ctx, cart.ID,
			[]enums.CartStatus{enums.CartStatusOpen, enums.CartStatusPending},
			map[string]any{"linked_order_id": order.ID, "status": enums.CartStatusPending})
		return err
	})
	if err != nil {
		return nil, err
	}
	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(logCtx, "order created")
	return order, nil
}

// Checkout creates the cart's order and, when a gateway is configured,
// requests a PIX charge the buyer can pay.
func (s *service) Checkout(ctx context.Context, cartID uuid.UUID) (*CheckoutResult, error) {
	cart, err := s.carts.FindByID(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if cart.Status != enums.CartStatusOpen && cart.Status != enums.CartStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart is not open for checkout").
			WithDetails(map[string]any{"status": cart.Status.String()})
	}

	provider := enums.PaymentProviderManual
	if s.gateway != nil {
		parsed, err := enums.ParsePaymentProvider(s.gateway.Provider())
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "gateway reports unknown provider")
		}
		provider = parsed
	}

	order, err := s.ensureOrder(ctx, cart, provider)
	if err != nil {
		return nil, err
	}
	result := &CheckoutResult{Order: order}

	if s.gateway == nil || provider.IsManual() {
		return result, nil
	}
	if order.ProviderPaymentID != nil {
		// Charge already requested on a previous checkout; reuse the order.
		return result, nil
	}

	charge, err := s.gateway.CreateCharge(ctx, order.GrossCents,
		fmt.Sprintf("Order %s", order.ID),
		map[string]string{"order_id": order.ID.String()})
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateFields(ctx, order.ID, map[string]any{
		"provider_payment_id": charge.ExternalID,
		"provider_status":     charge.Status,
	}); err != nil {
		return nil, err
	}
	order.ProviderPaymentID = &charge.ExternalID
	order.ProviderStatus = &charge.Status
	result.QRCode = charge.QRCode
	result.CopyPaste = charge.CopyPaste
	return result, nil
}

// ConfirmByStaff runs the delivery pipeline for a staff confirmation. The
// per-cart lock table turns a concurrent second confirm into an immediate
// retryable rejection.
func (s *service) ConfirmByStaff(ctx context.Context, cartID uuid.UUID, actorID string, note *string) (delivery.Result, error) {
	if !s.locks.TryAcquire(cartID) {
		return delivery.Result{}, pkgerrors.New(pkgerrors.CodeInProgress, "a confirmation for this cart is already running")
	}
	defer s.locks.Release(cartID)

	cart, err := s.carts.FindByID(ctx, cartID)
	if err != nil {
		return delivery.Result{}, err
	}
	if cart.Status == enums.CartStatusCancelled || cart.Status == enums.CartStatusExpired {
		return delivery.Result{}, pkgerrors.New(pkgerrors.CodeStateConflict, "cart is already closed")
	}
	if cart.Status == enums.CartStatusPaid {
		return delivery.Result{Reason: delivery.ReasonAlreadyDelivered}, nil
	}

	order, err := s.ensureOrder(ctx, cart, enums.PaymentProviderManual)
	if err != nil {
		return delivery.Result{}, err
	}
	return s.pipeline.Deliver(ctx, order.ID, enums.ConfirmationSourceStaff, actorID, note)
}

// CancelCart closes the cart and cancels its live order in one transaction.
// Cancelling an already-cancelled cart is a no-op.
func (s *service) CancelCart(ctx context.Context, cartID uuid.UUID, actorID string) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txCarts := s.carts.WithTx(tx)
		txRepo := s.repo.WithTx(tx)

		cart, err := txCarts.FindByID(ctx, cartID)
		if err != nil {
			return err
		}
		switch cart.Status {
		case enums.CartStatusCancelled, enums.CartStatusExpired:
			return nil
		case enums.CartStatusPaid:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cart was already delivered")
		}

		if _, err := txCarts.UpdateFieldsIfStatus(ctx, cartID,
			[]enums.CartStatus{enums.CartStatusOpen, enums.CartStatusPending},
			map[string]any{"status": enums.CartStatusCancelled}); err != nil {
			return err
		}

		order, err := txRepo.FindLiveByCartID(ctx, cartID)
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
				return nil
			}
			return err
		}
		moved, err := txRepo.UpdateFieldsIfStatus(ctx, order.ID,
			[]enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusWaitingStock},
			map[string]any{"status": enums.OrderStatusCancelled})
		if err != nil {
			return err
		}
		if moved {
			return txRepo.AppendEvent(ctx, order.ID, enums.OrderEventCancelled, map[string]any{
				"actor_id": actorID,
			})
		}
		return nil
	})
}
