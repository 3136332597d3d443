package payments

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/keydeck/keydeck-backend/internal/delivery"
	"github.com/keydeck/keydeck-backend/pkg/db/models"
	"github.com/keydeck/keydeck-backend/pkg/enums"
	pkgerrors "github.com/keydeck/keydeck-backend/pkg/errors"
	"github.com/keydeck/keydeck-backend/pkg/logger"
)

// StatusFetcher reads a charge's current status from the gateway.
type StatusFetcher interface {
	GetChargeStatus(ctx context.Context, externalID string) (string, error)
	Provider() string
}

// OrderSource is the slice of the order repository reconciliation needs.
type OrderSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
	UpdateFieldsIfStatus(ctx context.Context, id uuid.UUID, expected []enums.OrderStatus, fields map[string]any) (bool, error)
	AppendEvent(ctx context.Context, orderID uuid.UUID, eventType enums.OrderEventType, details any) error
	ListPendingProvider(ctx context.Context, limit int) ([]models.Order, error)
}

// Reconciler polls the PIX gateway and converges order state with what the
// provider reports.
type Reconciler struct {
	orders   OrderSource
	gateway  StatusFetcher
	pipeline *delivery.Pipeline
	logg     *logger.Logger

	sweeping atomic.Bool
}

// NewReconciler wires the payment reconciler.
func NewReconciler(orders OrderSource, gateway StatusFetcher, pipeline *delivery.Pipeline, logg *logger.Logger) (*Reconciler, error) {
	if orders == nil {
		return nil, fmt.Errorf("payments: order source is required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payments: gateway is required")
	}
	if pipeline == nil {
		return nil, fmt.Errorf("payments: delivery pipeline is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("payments: logger is required")
	}
	return &Reconciler{orders: orders, gateway: gateway, pipeline: pipeline, logg: logg}, nil
}

// SyncStatus refreshes one order from the gateway. A gateway outage is
// logged and swallowed; the next tick retries.
func (r *Reconciler) SyncStatus(ctx context.Context, orderID uuid.UUID) error {
	order, err := r.orders.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.PaymentProvider.IsManual() || order.ProviderPaymentID == nil {
		return nil
	}
	if order.Status != enums.OrderStatusPending && order.Status != enums.OrderStatusWaitingStock {
		return nil
	}
	ctx = r.logg.WithOrderID(ctx, order.ID.String())

	raw, err := r.gateway.GetChargeStatus(ctx, *order.ProviderPaymentID)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
			r.logg.Warn(ctx, "gateway unreachable; payment status sync postponed")
			return nil
		}
		return err
	}

	outcome, known := MapProviderStatus(order.PaymentProvider, raw)
	if !known {
		logCtx := r.logg.WithField(ctx, "provider_status", raw)
		r.logg.Warn(logCtx, "unknown provider status; treating as still pending")
	}

	previous := ""
	if order.ProviderStatus != nil {
		previous = *order.ProviderStatus
	}
	if raw != previous {
		if err := r.orders.UpdateFields(ctx, order.ID, map[string]any{"provider_status": raw}); err != nil {
			return err
		}
		prevOutcome, _ := MapProviderStatus(order.PaymentProvider, previous)
		if outcome != prevOutcome {
			if err := r.orders.AppendEvent(ctx, order.ID, enums.OrderEventProviderStatus, map[string]any{
				"from": previous,
				"to":   raw,
			}); err != nil {
				return err
			}
		}
	}

	switch outcome {
	case enums.GatewayOutcomePaid:
		result, err := r.pipeline.Deliver(ctx, order.ID, enums.ConfirmationSourceGateway, "gateway", nil)
		if err != nil {
			return err
		}
		logCtx := r.logg.WithField(ctx, "reason", string(result.Reason))
		r.logg.Info(logCtx, "gateway payment settled")
		return nil
	case enums.GatewayOutcomeFinalFailure:
		moved, err := r.orders.UpdateFieldsIfStatus(ctx, order.ID,
			[]enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusWaitingStock},
			map[string]any{"status": enums.OrderStatusFailed})
		if err != nil {
			return err
		}
		if moved {
			return r.orders.AppendEvent(ctx, order.ID, enums.OrderEventFailed, map[string]any{
				"provider_status": raw,
			})
		}
		return nil
	default:
		return nil
	}
}

// Sweep refreshes every pending gateway order. Re-entrant calls return
// immediately so overlapping ticks never double-poll.
func (r *Reconciler) Sweep(ctx context.Context, limit int) error {
	if !r.sweeping.CompareAndSwap(false, true) {
		return nil
	}
	defer r.sweeping.Store(false)

	pending, err := r.orders.ListPendingProvider(ctx, limit)
	if err != nil {
		return err
	}
	var errs error
	for _, order := range pending {
		if err := r.SyncStatus(ctx, order.ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
		}
	}
	return errs
}
