package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Delivery records the redeemable tokens handed to the buyer. Exactly one
// delivery ever exists per order; the unique index backs that invariant.
type Delivery struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID      `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_deliveries_order"`
	Tokens      pq.StringArray `gorm:"column:tokens;type:text[]"`
	DeliveredAt time.Time      `gorm:"column:delivered_at;not null"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
}
