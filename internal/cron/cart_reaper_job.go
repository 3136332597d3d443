package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/keydeck/keydeck-backend/internal/notify"
	"github.com/keydeck/keydeck-backend/pkg/db/models"
	"github.com/keydeck/keydeck-backend/pkg/enums"
	pkgerrors "github.com/keydeck/keydeck-backend/pkg/errors"
	"github.com/keydeck/keydeck-backend/pkg/logger"
)

const reaperBatchSize = 200

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type idleCartReader interface {
	ListIdleOpen(ctx context.Context, cutoff time.Time, limit int) ([]models.Cart, error)
}

// ReaperCartRepo is the slice of the cart repository the reaper needs.
type ReaperCartRepo interface {
	UpdateFieldsIfStatus(ctx context.Context, id uuid.UUID, expected []enums.CartStatus, fields map[string]any) (bool, error)
}

// ReaperOrderRepo is the slice of the order repository the reaper needs.
type ReaperOrderRepo interface {
	FindLiveByCartID(ctx context.Context, cartID uuid.UUID) (*models.Order, error)
	UpdateFieldsIfStatus(ctx context.Context, id uuid.UUID, expected []enums.OrderStatus, fields map[string]any) (bool, error)
	AppendEvent(ctx context.Context, orderID uuid.UUID, eventType enums.OrderEventType, details any) error
}

// ReaperRepoFactory rebinds the reaper repositories to a transaction.
type ReaperRepoFactory func(tx *gorm.DB) (ReaperCartRepo, ReaperOrderRepo)

type storeReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Store, error)
}

// CartReaperJobParams configure the idle cart reaper.
type CartReaperJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	IdleReader  idleCartReader
	RepoFactory ReaperRepoFactory
	Stores      storeReader
	Notifier    notify.Notifier
	IdleTTL     time.Duration
	Interval    time.Duration
}

// NewCartReaperJob builds the job that expires carts abandoned past the
// idle TTL and cancels any order still linked to them.
func NewCartReaperJob(params CartReaperJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.IdleReader == nil {
		return nil, fmt.Errorf("idle cart reader required")
	}
	if params.RepoFactory == nil {
		return nil, fmt.Errorf("repo factory required")
	}
	if params.Stores == nil {
		return nil, fmt.Errorf("store reader required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.IdleTTL <= 0 {
		return nil, fmt.Errorf("idle ttl must be positive")
	}
	return &cartReaperJob{
		logg:        params.Logger,
		db:          params.DB,
		idleReader:  params.IdleReader,
		repoFactory: params.RepoFactory,
		stores:      params.Stores,
		notifier:    params.Notifier,
		idleTTL:     params.IdleTTL,
		interval:    params.Interval,
		now:         time.Now,
	}, nil
}

type cartReaperJob struct {
	logg        *logger.Logger
	db          txRunner
	idleReader  idleCartReader
	repoFactory ReaperRepoFactory
	stores      storeReader
	notifier    notify.Notifier
	idleTTL     time.Duration
	interval    time.Duration
	now         func() time.Time
}

func (j *cartReaperJob) Name() string { return "cart-reaper" }

func (j *cartReaperJob) Interval() time.Duration { return j.interval }

func (j *cartReaperJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.idleTTL)
	idle, err := j.idleReader.ListIdleOpen(ctx, cutoff, reaperBatchSize)
	if err != nil {
		return err
	}

	var errs error
	expired := 0
	for _, cart := range idle {
		if err := j.expire(ctx, cart); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("cart %s: %w", cart.ID, err))
			continue
		}
		expired++
	}
	if expired > 0 {
		logCtx := j.logg.WithField(ctx, "expired", expired)
		j.logg.Info(logCtx, "idle carts expired")
	}
	return errs
}

func (j *cartReaperJob) expire(ctx context.Context, cart models.Cart) error {
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		txCarts, txOrders := j.repoFactory(tx)
		moved, err := txCarts.UpdateFieldsIfStatus(ctx, cart.ID,
			[]enums.CartStatus{enums.CartStatusOpen},
			map[string]any{"status": enums.CartStatusExpired})
		if err != nil {
			return err
		}
		if !moved {
			return nil
		}

		order, err := txOrders.FindLiveByCartID(ctx, cart.ID)
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
				return nil
			}
			return err
		}
		cancelled, err := txOrders.UpdateFieldsIfStatus(ctx, order.ID,
			[]enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusWaitingStock},
			map[string]any{"status": enums.OrderStatusCancelled})
		if err != nil {
			return err
		}
		if cancelled {
			return txOrders.AppendEvent(ctx, order.ID, enums.OrderEventCancelled,
				map[string]any{"reason": "cart idle timeout"})
		}
		return nil
	})
	if err != nil {
		return err
	}

	if sendErr := j.notifier.SendToUser(ctx, cart.BuyerUserID,
		"Your cart went quiet and was closed. Start again whenever you are ready."); sendErr != nil {
		j.logg.Warn(j.logg.WithField(ctx, "cart_id", cart.ID.String()), "could not notify buyer of expiry")
	}
	if store, storeErr := j.stores.GetByID(ctx, cart.StoreID); storeErr == nil {
		j.notifier.SendToStaffLog(ctx, store, fmt.Sprintf("Cart %s expired after %s of inactivity.", cart.ID, j.idleTTL))
	}
	return nil
}
