package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/keydeck/keydeck-backend/pkg/enums"
)

// Order is the payment/delivery record derived from a cart. At most one
// order per cart is ever in a non-terminal state.
type Order struct {
	ID                uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID            uuid.UUID             `gorm:"column:cart_id;type:uuid;not null;index"`
	StoreID           uuid.UUID             `gorm:"column:store_id;type:uuid;not null;index"`
	ProductID         uuid.UUID             `gorm:"column:product_id;type:uuid;not null"`
	VariantID         uuid.UUID             `gorm:"column:variant_id;type:uuid;not null"`
	Quantity          int                   `gorm:"column:quantity;not null"`
	GrossCents        int                   `gorm:"column:gross_cents;not null"`
	Status            enums.OrderStatus     `gorm:"column:status;not null;default:'pending'"`
	PaymentProvider   enums.PaymentProvider `gorm:"column:payment_provider;not null;default:'manual'"`
	ProviderPaymentID *string               `gorm:"column:provider_payment_id;index"`
	ProviderStatus    *string               `gorm:"column:provider_status"`
	WalletCreditedAt  *time.Time            `gorm:"column:wallet_credited_at"`
	DeliveryID        *uuid.UUID            `gorm:"column:delivery_id;type:uuid"`
	Confirmations     []OrderConfirmation   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Events            []OrderEvent          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderConfirmation records one trigger confirming the sale. Consecutive
// identical entries are deduplicated at append time.
type OrderConfirmation struct {
	ID        uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID                `gorm:"column:order_id;type:uuid;not null;index"`
	Source    enums.ConfirmationSource `gorm:"column:source;not null"`
	ActorID   string                   `gorm:"column:actor_id;not null"`
	Note      *string                  `gorm:"column:note"`
	CreatedAt time.Time                `gorm:"column:created_at;autoCreateTime"`
}

// OrderEvent is one entry in the order's append-only audit trail.
type OrderEvent struct {
	ID        uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index"`
	Type      enums.OrderEventType `gorm:"column:type;not null"`
	Details   json.RawMessage      `gorm:"column:details;type:jsonb"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime"`
}
