package stores

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/keydeck/keydeck-backend/pkg/db/models"
	pkgerrors "github.com/keydeck/keydeck-backend/pkg/errors"
)

// Service resolves tenant stores for incoming guild traffic.
type Service interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Store, error)
	ResolveGuild(ctx context.Context, guildID string) (*models.Store, error)
}

type service struct {
	repo Repository
}

// NewService wires the store service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("stores: repository is required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	return s.repo.FindByID(ctx, id)
}

// ResolveGuild maps a guild to its active store. Inactive stores behave as if
// they did not exist so the bot surfaces a uniform "no store here" reply.
func (s *service) ResolveGuild(ctx context.Context, guildID string) (*models.Store, error) {
	if guildID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guild id is required")
	}
	store, err := s.repo.FindByGuildID(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if !store.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no store registered for this guild")
	}
	return store, nil
}
