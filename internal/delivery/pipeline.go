package delivery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/keydeck/keydeck-backend/internal/notify"
	"github.com/keydeck/keydeck-backend/pkg/db/models"
	"github.com/keydeck/keydeck-backend/pkg/enums"
	pkgerrors "github.com/keydeck/keydeck-backend/pkg/errors"
	"github.com/keydeck/keydeck-backend/pkg/logger"
)

// Reason explains why a delivery attempt ended the way it did.
type Reason string

const (
	ReasonDelivered        Reason = "delivered"
	ReasonAlreadyDelivered Reason = "already_delivered"
	ReasonCancelled        Reason = "cancelled"
	ReasonWaitingStock     Reason = "waiting_stock"
)

// Result is the outcome of one pipeline pass over an order.
type Result struct {
	OK         bool
	Reason     Reason
	DeliveryID *uuid.UUID
	Tokens     []string
}

// OrderStore is the slice of the order repository the pipeline needs.
type OrderStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateFieldsIfStatus(ctx context.Context, id uuid.UUID, expected []enums.OrderStatus, fields map[string]any) (bool, error)
	AppendConfirmation(ctx context.Context, conf *models.OrderConfirmation) (bool, error)
	AppendEvent(ctx context.Context, orderID uuid.UUID, eventType enums.OrderEventType, details any) error
	CreateDelivery(ctx context.Context, record *models.Delivery) error
	ListWaitingStock(ctx context.Context, limit int) ([]models.Order, error)
}

// CartStore is the slice of the cart repository the pipeline needs.
type CartStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	UpdateFieldsIfStatus(ctx context.Context, id uuid.UUID, expected []enums.CartStatus, fields map[string]any) (bool, error)
}

// StoreFactory rebinds the pipeline's stores to a transaction.
type StoreFactory func(tx *gorm.DB) (OrderStore, CartStore)

// StockTaker draws tokens from the product pool inside the caller's
// transaction, so a rolled-back delivery returns its tokens.
type StockTaker interface {
	TakeInTx(ctx context.Context, tx *gorm.DB, storeID, productID, variantID uuid.UUID, count int) ([]string, error)
}

// ProductLoader resolves products for delivery decisions.
type ProductLoader interface {
	GetProduct(ctx context.Context, storeID, productID uuid.UUID) (*models.Product, error)
}

// StoreLoader resolves the tenant store for notifications.
type StoreLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Store, error)
}

// WalletCreditor credits the seller for a delivered order.
type WalletCreditor interface {
	CreditForOrder(ctx context.Context, orderID uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Pipeline runs an order from confirmation to fulfilment. Every step is
// guarded by an idempotency check, so replays and concurrent triggers settle
// on a single delivery.
type Pipeline struct {
	tx       txRunner
	orders   OrderStore
	carts    CartStore
	bindTx   StoreFactory
	stock    StockTaker
	products ProductLoader
	stores   StoreLoader
	wallet   WalletCreditor
	notifier notify.Notifier
	logg     *logger.Logger
}

// NewPipeline wires the delivery pipeline.
func NewPipeline(
	tx txRunner,
	orders OrderStore,
	carts CartStore,
	bindTx StoreFactory,
	stock StockTaker,
	products ProductLoader,
	stores StoreLoader,
	wallet WalletCreditor,
	notifier notify.Notifier,
	logg *logger.Logger,
) (*Pipeline, error) {
	if tx == nil || orders == nil || carts == nil || bindTx == nil {
		return nil, fmt.Errorf("delivery: stores and tx runner are required")
	}
	if stock == nil || products == nil || stores == nil {
		return nil, fmt.Errorf("delivery: stock, product, and store loaders are required")
	}
	if wallet == nil {
		return nil, fmt.Errorf("delivery: wallet creditor is required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("delivery: notifier is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("delivery: logger is required")
	}
	return &Pipeline{
		tx:       tx,
		orders:   orders,
		carts:    carts,
		bindTx:   bindTx,
		stock:    stock,
		products: products,
		stores:   stores,
		wallet:   wallet,
		notifier: notifier,
		logg:     logg,
	}, nil
}

var liveStatuses = []enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusWaitingStock}

// Deliver attempts to fulfil the order. Safe to call any number of times
// from any trigger: repeated calls after success report already_delivered
// without touching stock again.
func (p *Pipeline) Deliver(ctx context.Context, orderID uuid.UUID, source enums.ConfirmationSource, actorID string, note *string) (Result, error) {
	ctx = p.logg.WithOrderID(ctx, orderID.String())

	order, err := p.orders.FindByID(ctx, orderID)
	if err != nil {
		return Result{}, err
	}
	if order.Status == enums.OrderStatusDelivered {
		return Result{Reason: ReasonAlreadyDelivered, DeliveryID: order.DeliveryID}, nil
	}
	if order.Status.IsTerminal() {
		return Result{Reason: ReasonCancelled}, nil
	}

	cart, err := p.carts.FindByID(ctx, order.CartID)
	if err != nil {
		return Result{}, err
	}
	if cart.Status == enums.CartStatusCancelled || cart.Status == enums.CartStatusExpired {
		return p.cancelOrder(ctx, order, "cart closed before delivery")
	}

	if _, err := p.orders.AppendConfirmation(ctx, &models.OrderConfirmation{
		OrderID: order.ID,
		Source:  source,
		ActorID: actorID,
		Note:    note,
	}); err != nil {
		return Result{}, err
	}

	product, err := p.products.GetProduct(ctx, order.StoreID, order.ProductID)
	if err != nil {
		return Result{}, err
	}

	record := &models.Delivery{
		ID:          uuid.New(),
		OrderID:     order.ID,
		DeliveredAt: time.Now().UTC(),
	}
	var tokens []string
	var parked *Result
	err = p.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txOrders, txCarts := p.bindTx(tx)

		drawn, err := p.drawTokens(ctx, tx, order, product)
		if err != nil {
			if !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock) {
				return err
			}
			result, parkErr := p.parkWaitingStock(ctx, txOrders, txCarts, order, cart)
			if parkErr != nil {
				return parkErr
			}
			parked = result
			return nil
		}
		tokens = drawn
		record.Tokens = pq.StringArray(drawn)

		if err := txOrders.CreateDelivery(ctx, record); err != nil {
			return err
		}
		moved, err := txOrders.UpdateFieldsIfStatus(ctx, order.ID, liveStatuses, map[string]any{
			"status":      enums.OrderStatusDelivered,
			"delivery_id": record.ID,
		})
		if err != nil {
			return err
		}
		if !moved {
			// Rolling back hands the drawn tokens straight back to the pool.
			return pkgerrors.New(pkgerrors.CodeConflict, "order left the live state during delivery")
		}
		if err := txOrders.AppendEvent(ctx, order.ID, enums.OrderEventDelivered, map[string]any{
			"delivery_id": record.ID.String(),
			"tokens":      len(tokens),
		}); err != nil {
			return err
		}
		_, err = txCarts.UpdateFieldsIfStatus(ctx, cart.ID,
			[]enums.CartStatus{enums.CartStatusOpen, enums.CartStatusPending},
			map[string]any{"status": enums.CartStatusPaid})
		return err
	})
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
			reloaded, ferr := p.orders.FindByID(ctx, order.ID)
			if ferr != nil {
				return Result{}, ferr
			}
			if reloaded.Status == enums.OrderStatusDelivered {
				return Result{Reason: ReasonAlreadyDelivered, DeliveryID: reloaded.DeliveryID}, nil
			}
			return Result{Reason: ReasonCancelled}, nil
		}
		return Result{}, err
	}
	if parked != nil {
		p.alertStaff(ctx, order.StoreID, fmt.Sprintf(
			"Order %s is waiting on stock for product %s (need %d). Restock and it will deliver automatically.",
			order.ID, order.ProductID, order.Quantity))
		return *parked, nil
	}

	p.notifyBuyer(ctx, order, cart, product, tokens)

	if err := p.wallet.CreditForOrder(ctx, order.ID); err != nil {
		p.logg.Error(ctx, "wallet credit failed after delivery; reconciliation will retry", err)
	}

	p.logg.Info(ctx, "order delivered")
	return Result{OK: true, Reason: ReasonDelivered, DeliveryID: &record.ID, Tokens: tokens}, nil
}

// drawTokens draws stock for the order inside the delivery transaction, or
// renders the product's template for infinite-stock products.
func (p *Pipeline) drawTokens(ctx context.Context, tx *gorm.DB, order *models.Order, product *models.Product) ([]string, error) {
	if product.InfiniteStock {
		content := product.Name
		if product.DeliveryTemplate != nil && *product.DeliveryTemplate != "" {
			content = *product.DeliveryTemplate
		}
		tokens := make([]string, 0, order.Quantity)
		for i := 0; i < order.Quantity; i++ {
			tokens = append(tokens, content)
		}
		return tokens, nil
	}
	return p.stock.TakeInTx(ctx, tx, order.StoreID, order.ProductID, order.VariantID, order.Quantity)
}

// parkWaitingStock records a shortage: the order waits for restock and the
// cart drops back to pending so the buyer can be told.
func (p *Pipeline) parkWaitingStock(ctx context.Context, txOrders OrderStore, txCarts CartStore, order *models.Order, cart *models.Cart) (*Result, error) {
	moved, err := txOrders.UpdateFieldsIfStatus(ctx, order.ID,
		[]enums.OrderStatus{enums.OrderStatusPending},
		map[string]any{"status": enums.OrderStatusWaitingStock})
	if err != nil {
		return nil, err
	}
	if moved {
		if err := txOrders.AppendEvent(ctx, order.ID, enums.OrderEventStockShortage, map[string]any{
			"requested": order.Quantity,
		}); err != nil {
			return nil, err
		}
	}
	if _, err := txCarts.UpdateFieldsIfStatus(ctx, cart.ID,
		[]enums.CartStatus{enums.CartStatusOpen},
		map[string]any{"status": enums.CartStatusPending}); err != nil {
		return nil, err
	}
	return &Result{Reason: ReasonWaitingStock}, nil
}

// cancelOrder moves a live order to cancelled because its cart closed.
func (p *Pipeline) cancelOrder(ctx context.Context, order *models.Order, why string) (Result, error) {
	err := p.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txOrders, _ := p.bindTx(tx)
		moved, err := txOrders.UpdateFieldsIfStatus(ctx, order.ID, liveStatuses,
			map[string]any{"status": enums.OrderStatusCancelled})
		if err != nil {
			return err
		}
		if moved {
			return txOrders.AppendEvent(ctx, order.ID, enums.OrderEventCancelled, map[string]any{"reason": why})
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Reason: ReasonCancelled}, nil
}

// notifyBuyer DMs the tokens, falling back to the cart channel and finally a
// staff alert. Notification failure never unwinds the delivery.
func (p *Pipeline) notifyBuyer(ctx context.Context, order *models.Order, cart *models.Cart, product *models.Product, tokens []string) {
	message := fmt.Sprintf("Your purchase of %s is ready:\n%s", product.Name, strings.Join(tokens, "\n"))

	if err := p.notifier.SendToUser(ctx, cart.BuyerUserID, message); err == nil {
		return
	}
	if cart.ChannelID != "" {
		if err := p.notifier.SendToChannel(ctx, cart.ChannelID, message); err == nil {
			if err := p.orders.AppendEvent(ctx, order.ID, enums.OrderEventNotifyFallback, map[string]any{
				"channel_id": cart.ChannelID,
			}); err != nil {
				p.logg.Error(ctx, "failed to record notify fallback", err)
			}
			return
		}
	}
	p.alertStaff(ctx, order.StoreID, fmt.Sprintf(
		"Could not reach buyer %s for order %s. Deliver manually:\n%s",
		cart.BuyerUserID, order.ID, strings.Join(tokens, "\n")))
	if err := p.orders.AppendEvent(ctx, order.ID, enums.OrderEventNotifyFallback, map[string]any{
		"channel_id": "",
		"staff_only": true,
	}); err != nil {
		p.logg.Error(ctx, "failed to record notify fallback", err)
	}
}

func (p *Pipeline) alertStaff(ctx context.Context, storeID uuid.UUID, content string) {
	store, err := p.stores.GetByID(ctx, storeID)
	if err != nil {
		p.logg.Error(ctx, "failed to resolve store for staff alert", err)
		return
	}
	p.notifier.SendToStaffLog(ctx, store, content)
}

// RetrySummary tallies one pass over the waiting-stock backlog.
type RetrySummary struct {
	Delivered    int `json:"delivered"`
	StillWaiting int `json:"still_waiting"`
	Failed       int `json:"failed"`
}

// RetryWaitingStock replays every parked order oldest-first. Individual
// failures are collected so one bad order cannot block the rest.
func (p *Pipeline) RetryWaitingStock(ctx context.Context, limit int) (RetrySummary, error) {
	var summary RetrySummary
	waiting, err := p.orders.ListWaitingStock(ctx, limit)
	if err != nil {
		return summary, err
	}
	var errs error
	for _, order := range waiting {
		result, err := p.Deliver(ctx, order.ID, enums.ConfirmationSourceRetry, "system", nil)
		if err != nil {
			summary.Failed++
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		switch result.Reason {
		case ReasonDelivered, ReasonAlreadyDelivered:
			summary.Delivered++
		case ReasonWaitingStock:
			summary.StillWaiting++
		}
	}
	return summary, errs
}
