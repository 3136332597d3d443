package models

import (
	"time"

	"github.com/google/uuid"
)

// Store is the per-guild tenant: one storefront with its own catalog,
// stock pool and seller configuration.
type Store struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GuildID        string    `gorm:"column:guild_id;uniqueIndex;not null"`
	Name           string    `gorm:"column:name;not null"`
	OwnerUserID    string    `gorm:"column:owner_user_id;not null"`
	StaffChannelID string    `gorm:"column:staff_channel_id"`
	FeePercent     *float64  `gorm:"column:fee_percent"`
	IsActive       bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
