package orders

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/keydeck/keydeck-backend/internal/repo"
	"github.com/keydeck/keydeck-backend/pkg/db"
	"github.com/keydeck/keydeck-backend/pkg/db/models"
	"github.com/keydeck/keydeck-backend/pkg/enums"
	pkgerrors "github.com/keydeck/keydeck-backend/pkg/errors"
)

// Repository exposes persistence operations for orders, their audit trail,
// and delivery records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindLiveByCartID(ctx context.Context, cartID uuid.UUID) (*models.Order, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
	UpdateFieldsIfStatus(ctx context.Context, id uuid.UUID, expected []enums.OrderStatus, fields map[string]any) (bool, error)
	AppendConfirmation(ctx context.Context, conf *models.OrderConfirmation) (bool, error)
	AppendEvent(ctx context.Context, orderID uuid.UUID, eventType enums.OrderEventType, details any) error
	CreateDelivery(ctx context.Context, record *models.Delivery) error
	FindDeliveryByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error)
	ListWaitingStock(ctx context.Context, limit int) ([]models.Order, error)
	ListPendingProvider(ctx context.Context, limit int) ([]models.Order, error)
	ListDeliveredUncredited(ctx context.Context, limit int) ([]models.Order, error)
}

type repository struct {
	repo.Base
}

// NewRepository builds the GORM-backed order repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	if err := r.DB(ctx).Create(order).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to create order")
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.DB(ctx).
		Preload("Confirmations", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load order")
	}
	return &order, nil
}

// FindLiveByCartID returns the cart's non-terminal order, if any.
func (r *repository) FindLiveByCartID(ctx context.Context, cartID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.DB(ctx).
		Where("cart_id = ? AND status IN ?", cartID,
			[]enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusWaitingStock}).
		Order("created_at DESC").
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no live order for cart")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load order by cart")
	}
	return &order, nil
}

func (r *repository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	res := r.DB(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "failed to update order")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return nil
}

func (r *repository) UpdateFieldsIfStatus(ctx context.Context, id uuid.UUID, expected []enums.OrderStatus, fields map[string]any) (bool, error) {
	res := r.DB(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, expected).
		Updates(fields)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "failed to update order")
	}
	return res.RowsAffected > 0, nil
}

// AppendConfirmation records a confirmation unless it exactly repeats the
// most recent one. Reports whether a row was written.
func (r *repository) AppendConfirmation(ctx context.Context, conf *models.OrderConfirmation) (bool, error) {
	var last models.OrderConfirmation
	err := r.DB(ctx).
		Where("order_id = ?", conf.OrderID).
		Order("created_at DESC").
		First(&last).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load last confirmation")
	}
	if err == nil && last.Source == conf.Source && last.ActorID == conf.ActorID && equalNote(last.Note, conf.Note) {
		return false, nil
	}
	if conf.ID == uuid.Nil {
		conf.ID = uuid.New()
	}
	if err := r.DB(ctx).Create(conf).Error; err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to append confirmation")
	}
	return true, nil
}

func (r *repository) AppendEvent(ctx context.Context, orderID uuid.UUID, eventType enums.OrderEventType, details any) error {
	event := models.OrderEvent{
		ID:      uuid.New(),
		OrderID: orderID,
		Type:    eventType,
	}
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to encode event details")
		}
		event.Details = raw
	}
	if err := r.DB(ctx).Create(&event).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to append order event")
	}
	return nil
}

func (r *repository) CreateDelivery(ctx context.Context, record *models.Delivery) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if err := r.DB(ctx).Create(record).Error; err != nil {
		if db.IsUniqueViolation(err, "ux_deliveries_order") {
			return pkgerrors.New(pkgerrors.CodeConflict, "order already has a delivery")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to create delivery")
	}
	return nil
}

func (r *repository) FindDeliveryByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error) {
	var record models.Delivery
	if err := r.DB(ctx).First(&record, "order_id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load delivery")
	}
	return &record, nil
}

// ListWaitingStock returns orders parked on a stock shortage, oldest first,
// so restocks replay in arrival order.
func (r *repository) ListWaitingStock(ctx context.Context, limit int) ([]models.Order, error) {
	var waiting []models.Order
	err := r.DB(ctx).
		Where("status = ?", enums.OrderStatusWaitingStock).
		Order("created_at ASC").
		Limit(limit).
		Find(&waiting).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to list waiting orders")
	}
	return waiting, nil
}

// ListPendingProvider returns gateway-backed orders still awaiting payment.
// Orders parked on a stock shortage stay in the sweep: a refusal or expiry
// at the gateway must still cancel them.
func (r *repository) ListPendingProvider(ctx context.Context, limit int) ([]models.Order, error) {
	var pending []models.Order
	err := r.DB(ctx).
		Where("status IN ? AND payment_provider <> ? AND provider_payment_id IS NOT NULL",
			[]enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusWaitingStock},
			enums.PaymentProviderManual).
		Order("created_at ASC").
		Limit(limit).
		Find(&pending).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to list pending provider orders")
	}
	return pending, nil
}

// ListDeliveredUncredited returns delivered orders whose seller wallet has
// not been credited yet.
func (r *repository) ListDeliveredUncredited(ctx context.Context, limit int) ([]models.Order, error) {
	var uncredited []models.Order
	err := r.DB(ctx).
		Where("status = ? AND wallet_credited_at IS NULL", enums.OrderStatusDelivered).
		Order("created_at ASC").
		Limit(limit).
		Find(&uncredited).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to list uncredited orders")
	}
	return uncredited, nil
}

func equalNote(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
