package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/keydeck/keydeck-backend/pkg/config"
	"github.com/keydeck/keydeck-backend/pkg/db/models"
	"github.com/keydeck/keydeck-backend/pkg/enums"
	pkgerrors "github.com/keydeck/keydeck-backend/pkg/errors"
	"github.com/keydeck/keydeck-backend/pkg/logger"
	"github.com/keydeck/keydeck-backend/pkg/pagination"
)

// OrderSource is the slice of the order repository the wallet needs.
type OrderSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
	AppendEvent(ctx context.Context, orderID uuid.UUID, eventType enums.OrderEventType, details any) error
	ListDeliveredUncredited(ctx context.Context, limit int) ([]models.Order, error)
}

// StoreSource resolves the store that owns an order.
type StoreSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Store, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service credits sellers for delivered orders, exactly once per order.
type Service interface {
	CreditForOrder(ctx context.Context, orderID uuid.UUID) error
	ReconcileUncredited(ctx context.Context, limit int) error
	GetAccount(ctx context.Context, ownerUserID string) (*models.WalletAccount, error)
	ListEntries(ctx context.Context, ownerUserID string, params pagination.Params) ([]models.WalletEntry, string, error)
}

// OrderBinder rebinds the order source to a transaction.
type OrderBinder func(tx *gorm.DB) OrderSource

type service struct {
	tx      txRunner
	repo    Repository
	orders  OrderSource
	bindTx  OrderBinder
	stores  StoreSource
	billing config.BillingConfig
	logg    *logger.Logger
}

// NewService wires the wallet service.
func NewService(tx txRunner, repo Repository, orders OrderSource, bindTx OrderBinder, stores StoreSource, billing config.BillingConfig, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("wallet: tx runner is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("wallet: repository is required")
	}
	if orders == nil || bindTx == nil {
		return nil, fmt.Errorf("wallet: order source is required")
	}
	if stores == nil {
		return nil, fmt.Errorf("wallet: store source is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("wallet: logger is required")
	}
	return &service{tx: tx, repo: repo, orders: orders, bindTx: bindTx, stores: stores, billing: billing, logg: logg}, nil
}

func (s *service) GetAccount(ctx context.Context, ownerUserID string) (*models.WalletAccount, error) {
	return s.repo.FindAccountByOwner(ctx, ownerUserID)
}

// ListEntries pages through a seller's ledger, newest first. The returned
// cursor is empty once the last page is reached.
func (s *service) ListEntries(ctx context.Context, ownerUserID string, params pagination.Params) ([]models.WalletEntry, string, error) {
	account, err := s.repo.FindAccountByOwner(ctx, ownerUserID)
	if err != nil {
		return nil, "", err
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	entries, err := s.repo.ListEntries(ctx, account.ID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(entries) > limit {
		entries = entries[:limit]
		last := entries[len(entries)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return entries, next, nil
}

// netCents deducts the platform fee from the order's gross. The fee itself
// is rounded, not the net, so ties always favour the platform.
func netCents(grossCents int, feePercent float64) int64 {
	fee := decimal.NewFromInt(int64(grossCents)).
		Mul(decimal.NewFromFloat(feePercent)).
		Div(decimal.NewFromInt(100)).
		Round(0)
	return int64(grossCents) - fee.IntPart()
}

// bonusDays converts cumulative sales growth into plan extension days. Every
// full bonus unit crossed earns BonusDaysPerUnit.
func (s *service) bonusDays(before, after int64) int {
	unit := int64(s.billing.BonusUnitCents)
	if unit <= 0 {
		return 0
	}
	crossed := after/unit - before/unit
	if crossed <= 0 {
		return 0
	}
	return int(crossed) * s.billing.BonusDaysPerUnit
}

// CreditForOrder credits the seller's wallet for a delivered order. The
// order-level marker and the ledger's unique (order_id, type) index together
// guarantee the credit lands at most once, whichever trigger gets there
// first.
func (s *service) CreditForOrder(ctx context.Context, orderID uuid.UUID) error {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.WalletCreditedAt != nil {
		return nil
	}
	if order.Status != enums.OrderStatusDelivered {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "only delivered orders are credited")
	}

	store, err := s.stores.FindByID(ctx, order.StoreID)
	if err != nil {
		return err
	}
	if store.OwnerUserID == "" {
		return pkgerrors.New(pkgerrors.CodeInternal, "store has no owner to credit")
	}

	feePercent := s.billing.FeePercent
	if store.FeePercent != nil {
		feePercent = *store.FeePercent
	}
	amount := netCents(order.GrossCents, feePercent)

	now := time.Now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		txOrders := s.bindTx(tx)

		account, err := txRepo.FindOrCreateAccount(ctx, store.OwnerUserID)
		if err != nil {
			return err
		}

		metadata, _ := json.Marshal(map[string]any{
			"gross_cents": order.GrossCents,
			"fee_percent": feePercent,
		})
		entry := &models.WalletEntry{
			AccountID:   account.ID,
			OwnerUserID: store.OwnerUserID,
			Type:        enums.WalletEntryTypeSaleCredit,
			AmountCents: amount,
			OrderID:     &order.ID,
			Metadata:    metadata,
		}
		inserted, err := txRepo.CreateEntry(ctx, entry)
		if err != nil {
			return err
		}
		if !inserted {
			// Ledger already has the credit; just repair the marker.
			return txOrders.UpdateFields(ctx, order.ID, map[string]any{"wallet_credited_at": now})
		}

		if err := txRepo.ApplyCredit(ctx, account.ID, amount); err != nil {
			return err
		}

		// The bonus extends an active plan only. Sellers without one, or
		// with a lapsed one, accrue cumulative sales but no extra days.
		if days := s.bonusDays(account.CumulativeSalesCents, account.CumulativeSalesCents+amount); days > 0 {
			if account.PlanExpiresAt != nil && account.PlanExpiresAt.After(now) {
				expiry := account.PlanExpiresAt.AddDate(0, 0, days)
				if err := txRepo.SetPlanExpiry(ctx, account.ID, expiry); err != nil {
					return err
				}
			}
		}

		if err := txOrders.UpdateFields(ctx, order.ID, map[string]any{"wallet_credited_at": now}); err != nil {
			return err
		}
		return txOrders.AppendEvent(ctx, order.ID, enums.OrderEventWalletCredited, map[string]any{
			"amount_cents": amount,
			"owner":        store.OwnerUserID,
		})
	})
	if err != nil {
		return err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"amount_cents": amount,
	})
	s.logg.Info(logCtx, "seller wallet credited")
	return nil
}

// ReconcileUncredited sweeps delivered orders whose credit never landed.
// Per-order failures are collected so one broken order cannot stall the
// sweep.
func (s *service) ReconcileUncredited(ctx context.Context, limit int) error {
	uncredited, err := s.orders.ListDeliveredUncredited(ctx, limit)
	if err != nil {
		return err
	}
	var errs error
	for _, order := range uncredited {
		if err := s.CreditForOrder(ctx, order.ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
		}
	}
	return errs
}
