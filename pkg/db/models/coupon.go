package models

import (
	"time"

	"github.com/google/uuid"
)

// Coupon is a store-scoped percent-off code applied to open carts.
type Coupon struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	StoreID   uuid.UUID `gorm:"column:store_id;type:uuid;not null;uniqueIndex:ux_coupons_store_code" json:"store_id"`
	Code      string    `gorm:"column:code;not null;uniqueIndex:ux_coupons_store_code" json:"code"`
	Percent   int       `gorm:"column:percent;not null" json:"percent"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Coupon) TableName() string {
	return "coupons"
}
