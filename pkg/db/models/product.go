package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a sellable digital good scoped to a store.
type Product struct {
	ID               uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID          uuid.UUID        `gorm:"column:store_id;type:uuid;not null;index"`
	Name             string           `gorm:"column:name;not null"`
	Description      string           `gorm:"column:description"`
	InfiniteStock    bool             `gorm:"column:infinite_stock;not null;default:false"`
	DeliveryTemplate *string          `gorm:"column:delivery_template"`
	IsActive         bool             `gorm:"column:is_active;not null;default:true"`
	Variants         []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// ProductVariant is one purchasable option of a product. Its id doubles as
// the variant's stock bucket name.
type ProductVariant struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	Name       string    `gorm:"column:name;not null"`
	PriceCents int       `gorm:"column:price_cents;not null"`
	IsActive   bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
