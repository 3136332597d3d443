package stores

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/keydeck/keydeck-backend/internal/repo"
	"github.com/keydeck/keydeck-backend/pkg/db/models"
	pkgerrors "github.com/keydeck/keydeck-backend/pkg/errors"
)

// Repository exposes persistence operations for stores.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Store, error)
	FindByGuildID(ctx context.Context, guildID string) (*models.Store, error)
	Update(ctx context.Context, store *models.Store) error
}

type repository struct {
	repo.Base
}

// NewRepository builds the GORM-backed store repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	var store models.Store
	if err := r.DB(ctx).First(&store, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load store")
	}
	return &store, nil
}

func (r *repository) FindByGuildID(ctx context.Context, guildID string) (*models.Store, error) {
	var store models.Store
	if err := r.DB(ctx).First(&store, "guild_id = ?", guildID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no store registered for this guild")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load store by guild")
	}
	return &store, nil
}

func (r *repository) Update(ctx context.Context, store *models.Store) error {
	if err := r.DB(ctx).Save(store).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to update store")
	}
	return nil
}
