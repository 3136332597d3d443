package models

import (
	"time"

	"github.com/google/uuid"
)

// StockItem is one unique redeemable token sitting in a named bucket of a
// store's per-product pool. A token appears in at most one bucket across the
// whole pool; allocation deletes rows irreversibly.
type StockItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID   uuid.UUID `gorm:"column:store_id;type:uuid;not null;index:ix_stock_items_pool;uniqueIndex:ux_stock_items_token"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;index:ix_stock_items_pool;uniqueIndex:ux_stock_items_token"`
	Bucket    string    `gorm:"column:bucket;not null;index:ix_stock_items_pool"`
	Token     string    `gorm:"column:token;not null;uniqueIndex:ux_stock_items_token"`
	Position  int64     `gorm:"column:position;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
