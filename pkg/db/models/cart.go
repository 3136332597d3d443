package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/keydeck/keydeck-backend/pkg/enums"
)

// Cart is a buyer's in-progress selection bound to one private sales channel.
// A buyer holds at most one open cart per store at a time.
type Cart struct {
	ID              uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID         uuid.UUID        `gorm:"column:store_id;type:uuid;not null;index"`
	BuyerUserID     string           `gorm:"column:buyer_user_id;not null;index"`
	ChannelID       string           `gorm:"column:channel_id"`
	ProductID       uuid.UUID        `gorm:"column:product_id;type:uuid;not null"`
	VariantID       uuid.UUID        `gorm:"column:variant_id;type:uuid;not null"`
	Quantity        int              `gorm:"column:quantity;not null;default:1"`
	DiscountPercent int              `gorm:"column:discount_percent;not null;default:0"`
	Status          enums.CartStatus `gorm:"column:status;not null;default:'open'"`
	LinkedOrderID   *uuid.UUID       `gorm:"column:linked_order_id;type:uuid"`
	LastActivityAt  time.Time        `gorm:"column:last_activity_at;not null"`
	CreatedAt       time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
