package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/keydeck/keydeck-backend/pkg/enums"
)

// WalletAccount is the platform-wide balance record for one seller,
// independent of any single store.
type WalletAccount struct {
	ID                   uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerUserID          string     `gorm:"column:owner_user_id;not null;uniqueIndex:ux_wallet_accounts_owner"`
	BalanceCents         int64      `gorm:"column:balance_cents;not null;default:0"`
	CumulativeSalesCents int64      `gorm:"column:cumulative_sales_cents;not null;default:0"`
	PlanExpiresAt        *time.Time `gorm:"column:plan_expires_at"`
	CreatedAt            time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// WalletEntry is one immutable line in a seller's ledger. The unique index
// on (order_id, type) is what makes sale crediting idempotent even if the
// order's own wallet_credited_at marker is lost to a partial write.
type WalletEntry struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AccountID   uuid.UUID             `gorm:"column:account_id;type:uuid;not null;index"`
	OwnerUserID string                `gorm:"column:owner_user_id;not null"`
	Type        enums.WalletEntryType `gorm:"column:type;not null;uniqueIndex:ux_wallet_entries_order_type"`
	AmountCents int64                 `gorm:"column:amount_cents;not null"`
	Status      string                `gorm:"column:status;not null;default:'confirmed'"`
	OrderID     *uuid.UUID            `gorm:"column:order_id;type:uuid;uniqueIndex:ux_wallet_entries_order_type"`
	Metadata    json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}
