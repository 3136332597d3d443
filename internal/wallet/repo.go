package wallet

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/google/uuid"

	"github.com/keydeck/keydeck-backend/internal/repo"
	"github.com/keydeck/keydeck-backend/pkg/db/models"
	"github.com/keydeck/keydeck-backend/pkg/pagination"
	pkgerrors "github.com/keydeck/keydeck-backend/pkg/errors"
)

// Repository exposes persistence operations for wallet accounts and their
// ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrCreateAccount(ctx context.Context, ownerUserID string) (*models.WalletAccount, error)
	FindAccountByOwner(ctx context.Context, ownerUserID string) (*models.WalletAccount, error)
	// CreateEntry inserts a ledger entry, reporting false when the
	// (order_id, type) slot is already taken.
	CreateEntry(ctx context.Context, entry *models.WalletEntry) (bool, error)
	ApplyCredit(ctx context.Context, accountID uuid.UUID, amountCents int64) error
	SetPlanExpiry(ctx context.Context, accountID uuid.UUID, expiry any) error
	ListEntries(ctx context.Context, accountID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.WalletEntry, error)
}

type repository struct {
	repo.Base
}

// NewRepository builds the GORM-backed wallet repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) FindOrCreateAccount(ctx context.Context, ownerUserID string) (*models.WalletAccount, error) {
	account := models.WalletAccount{ID: uuid.New(), OwnerUserID: ownerUserID}
	err := r.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_user_id"}},
			DoNothing: true,
		}).
		Create(&account).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to ensure wallet account")
	}
	// Write to the row before reading it so a surrounding transaction holds
	// its lock until commit. Concurrent credits then see each other's
	// cumulative totals instead of a stale snapshot.
	touch := r.DB(ctx).
		Model(&models.WalletAccount{}).
		Where("owner_user_id = ?", ownerUserID).
		Update("updated_at", time.Now().UTC())
	if touch.Error != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, touch.Error, "failed to lock wallet account")
	}
	return r.FindAccountByOwner(ctx, ownerUserID)
}

func (r *repository) FindAccountByOwner(ctx context.Context, ownerUserID string) (*models.WalletAccount, error) {
	var account models.WalletAccount
	if err := r.DB(ctx).First(&account, "owner_user_id = ?", ownerUserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load wallet account")
	}
	return &account, nil
}

func (r *repository) CreateEntry(ctx context.Context, entry *models.WalletEntry) (bool, error) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	res := r.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}, {Name: "type"}},
			DoNothing: true,
		}).
		Create(entry)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "failed to create wallet entry")
	}
	return res.RowsAffected > 0, nil
}

// ApplyCredit bumps balance and cumulative sales atomically in SQL.
func (r *repository) ApplyCredit(ctx context.Context, accountID uuid.UUID, amountCents int64) error {
	res := r.DB(ctx).
		Model(&models.WalletAccount{}).
		Where("id = ?", accountID).
		Updates(map[string]any{
			"balance_cents":          gorm.Expr("balance_cents + ?", amountCents),
			"cumulative_sales_cents": gorm.Expr("cumulative_sales_cents + ?", amountCents),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "failed to apply wallet credit")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "wallet account not found")
	}
	return nil
}

func (r *repository) SetPlanExpiry(ctx context.Context, accountID uuid.UUID, expiry any) error {
	res := r.DB(ctx).
		Model(&models.WalletAccount{}).
		Where("id = ?", accountID).
		Update("plan_expires_at", expiry)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "failed to set plan expiry")
	}
	return nil
}

func (r *repository) ListEntries(ctx context.Context, accountID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.WalletEntry, error) {
	query := r.DB(ctx).Where("account_id = ?", accountID)
	if cursor != nil {
		query = query.Where(
			"created_at < ? OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var entries []models.WalletEntry
	err := query.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to list wallet entries")
	}
	return entries, nil
}
