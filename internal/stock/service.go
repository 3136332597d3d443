package stock

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/keydeck/keydeck-backend/pkg/db"
	"github.com/keydeck/keydeck-backend/pkg/db/models"
	pkgerrors "github.com/keydeck/keydeck-backend/pkg/errors"
	"github.com/keydeck/keydeck-backend/pkg/logger"
)

// Reserved bucket names. Any other bucket is a variant bucket keyed by the
// variant's id.
const (
	BucketDefault = "default"
	BucketShared  = "shared"
)

// Service manages per-product token pools. Draws are all-or-nothing: a take
// that cannot be fully satisfied removes nothing.
type Service interface {
	Take(ctx context.Context, storeID, productID, variantID uuid.UUID, count int) ([]string, error)
	TakeInTx(ctx context.Context, tx *gorm.DB, storeID, productID, variantID uuid.UUID, count int) ([]string, error)
	AvailableCount(ctx context.Context, storeID, productID, variantID uuid.UUID) (int64, error)
	Add(ctx context.Context, storeID, productID uuid.UUID, bucket string, tokens []string) (int, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	tx   txRunner
	repo Repository
	logg *logger.Logger

	mu    sync.Mutex
	pools map[string]*sync.Mutex
}

// NewService wires the stock service.
func NewService(tx txRunner, repo Repository, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("stock: tx runner is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("stock: repository is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("stock: logger is required")
	}
	return &service{
		tx:    tx,
		repo:  repo,
		logg:  logg,
		pools: make(map[string]*sync.Mutex),
	}, nil
}

// poolLock returns the mutex serializing draws for one store+product pool.
func (s *service) poolLock(storeID, productID uuid.UUID) *sync.Mutex {
	key := storeID.String() + ":" + productID.String()
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.pools[key]
	if !ok {
		lock = &sync.Mutex{}
		s.pools[key] = lock
	}
	return lock
}

// fallbackBuckets lists the shared sources a draw may fall back to, in draw
// order.
func fallbackBuckets() []string {
	return []string{BucketDefault, BucketShared}
}

// Take draws count tokens for the given variant inside its own transaction.
// The variant's bucket serves the draw only when it covers the full count;
// otherwise the whole draw comes from default then shared. A shortfall
// leaves the pool untouched.
func (s *service) Take(ctx context.Context, storeID, productID, variantID uuid.UUID, count int) ([]string, error) {
	if count <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "count must be positive")
	}

	lock := s.poolLock(storeID, productID)
	lock.Lock()
	defer lock.Unlock()

	var tokens []string
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		drawn, err := s.draw(ctx, s.repo.WithTx(tx), storeID, productID, variantID, count)
		if err != nil {
			return err
		}
		tokens = drawn
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"store_id":   storeID.String(),
		"product_id": productID.String(),
		"count":      count,
	})
	s.logg.Info(logCtx, "stock tokens drawn")
	return tokens, nil
}

// TakeInTx draws tokens inside the caller's transaction, so rolling the
// caller back returns the tokens to the pool.
func (s *service) TakeInTx(ctx context.Context, tx *gorm.DB, storeID, productID, variantID uuid.UUID, count int) ([]string, error) {
	if count <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "count must be positive")
	}

	lock := s.poolLock(storeID, productID)
	lock.Lock()
	defer lock.Unlock()

	return s.draw(ctx, s.repo.WithTx(tx), storeID, productID, variantID, count)
}

// draw picks and removes count tokens. Either the variant bucket covers the
// whole draw or the fallback chain does; the two are never mixed.
func (s *service) draw(ctx context.Context, txRepo Repository, storeID, productID, variantID uuid.UUID, count int) ([]string, error) {
	picked, err := txRepo.ListBucket(ctx, storeID, productID, variantID.String(), count)
	if err != nil {
		return nil, err
	}
	if len(picked) < count {
		picked = picked[:0]
		for _, bucket := range fallbackBuckets() {
			remaining := count - len(picked)
			if remaining == 0 {
				break
			}
			items, err := txRepo.ListBucket(ctx, storeID, productID, bucket, remaining)
			if err != nil {
				return nil, err
			}
			picked = append(picked, items...)
		}
	}
	if len(picked) < count {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough stock to fulfil the order").
			WithDetails(map[string]any{"requested": count, "available": len(picked)})
	}

	ids := make([]uuid.UUID, 0, len(picked))
	for _, item := range picked {
		ids = append(ids, item.ID)
	}
	deleted, err := txRepo.DeleteItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	if deleted != int64(count) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "stock pool changed during draw")
	}

	tokens := make([]string, 0, len(picked))
	for _, item := range picked {
		tokens = append(tokens, item.Token)
	}
	return tokens, nil
}

// AvailableCount reports the variant bucket's own count, or the fallback
// chain's when the variant bucket is empty. Advisory only; Take is the
// authority.
func (s *service) AvailableCount(ctx context.Context, storeID, productID, variantID uuid.UUID) (int64, error) {
	own, err := s.repo.CountBuckets(ctx, storeID, productID, []string{variantID.String()})
	if err != nil {
		return 0, err
	}
	if own > 0 {
		return own, nil
	}
	return s.repo.CountBuckets(ctx, storeID, productID, fallbackBuckets())
}

// Add appends tokens to a bucket, skipping blanks and preserving upload order.
func (s *service) Add(ctx context.Context, storeID, productID uuid.UUID, bucket string, tokens []string) (int, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "bucket is required")
	}
	if bucket != BucketDefault && bucket != BucketShared {
		if _, err := uuid.Parse(bucket); err != nil {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, "bucket must be default, shared, or a variant id")
		}
	}

	cleaned := make([]string, 0, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token != "" {
			cleaned = append(cleaned, token)
		}
	}
	if len(cleaned) == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "no tokens to add")
	}

	lock := s.poolLock(storeID, productID)
	lock.Lock()
	defer lock.Unlock()

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		pos, err := txRepo.MaxPosition(ctx, storeID, productID, bucket)
		if err != nil {
			return err
		}
		items := make([]models.StockItem, 0, len(cleaned))
		for i, token := range cleaned {
			items = append(items, models.StockItem{
				ID:        uuid.New(),
				StoreID:   storeID,
				ProductID: productID,
				Bucket:    bucket,
				Token:     token,
				Position:  pos + int64(i) + 1,
			})
		}
		if err := txRepo.Insert(ctx, items); err != nil {
			if db.IsUniqueViolation(err, "ux_stock_items_token") {
				return pkgerrors.New(pkgerrors.CodeConflict, "one or more tokens already exist in this pool")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(cleaned), nil
}
