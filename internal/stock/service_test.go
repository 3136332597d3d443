package stock

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/keydeck/keydeck-backend/pkg/db/models"
	pkgerrors "github.com/keydeck/keydeck-backend/pkg/errors"
	"github.com/keydeck/keydeck-backend/pkg/logger"
)

func setupStockTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:stock_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS stock_items (
  id TEXT PRIMARY KEY,
  store_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  bucket TEXT NOT NULL,
  token TEXT NOT NULL,
  position INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_stock_items_token ON stock_items (store_id, product_id, token);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newStockService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
	svc, err := NewService(gormTxRunner{db: db}, NewRepository(db), logg)
	require.NoError(t, err)
	return svc
}

func seedTokens(t *testing.T, db *gorm.DB, storeID, productID uuid.UUID, bucket string, tokens ...string) {
	t.Helper()
	for i, token := range tokens {
		item := models.StockItem{
			ID:        uuid.New(),
			StoreID:   storeID,
			ProductID: productID,
			Bucket:    bucket,
			Token:     token,
			Position:  int64(i + 1),
		}
		require.NoError(t, db.Create(&item).Error)
	}
}

func TestTakeUsesVariantBucketWhenItCovers(t *testing.T) {
	t.Parallel()

	db := setupStockTestDB(t)
	svc := newStockService(t, db)
	ctx := context.Background()
	storeID, productID, variantID := uuid.New(), uuid.New(), uuid.New()

	seedTokens(t, db, storeID, productID, variantID.String(), "v1", "v2")
	seedTokens(t, db, storeID, productID, BucketDefault, "d1", "d2")
	seedTokens(t, db, storeID, productID, BucketShared, "s1")

	tokens, err := svc.Take(ctx, storeID, productID, variantID, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"v1", "v2"}, tokens)

	// Variant bucket is drained, so availability falls back to default+shared.
	remaining, err := svc.AvailableCount(ctx, storeID, productID, variantID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), remaining)
}

func TestTakeNeverMixesVariantAndFallbackBuckets(t *testing.T) {
	t.Parallel()

	db := setupStockTestDB(t)
	svc := newStockService(t, db)
	ctx := context.Background()
	storeID, productID, variantID := uuid.New(), uuid.New(), uuid.New()

	seedTokens(t, db, storeID, productID, variantID.String(), "v1", "v2")
	seedTokens(t, db, storeID, productID, BucketDefault, "d1", "d2")
	seedTokens(t, db, storeID, productID, BucketShared, "s1")

	// The variant bucket cannot cover 3, so the whole draw comes from the
	// fallback chain and the variant tokens stay put.
	tokens, err := svc.Take(ctx, storeID, productID, variantID, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d2", "s1"}, tokens)

	remaining, err := svc.AvailableCount(ctx, storeID, productID, variantID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), remaining)
}

func TestAvailableCountPrefersVariantBucket(t *testing.T) {
	t.Parallel()

	db := setupStockTestDB(t)
	svc := newStockService(t, db)
	ctx := context.Background()
	storeID, productID, variantID := uuid.New(), uuid.New(), uuid.New()

	seedTokens(t, db, storeID, productID, variantID.String(), "v1")
	seedTokens(t, db, storeID, productID, BucketDefault, "d1", "d2", "d3")

	// A non-empty variant bucket reports its own count, not the sum.
	count, err := svc.AvailableCount(ctx, storeID, productID, variantID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	other, err := svc.AvailableCount(ctx, storeID, productID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, int64(3), other)
}

func TestTakeSpillsDefaultBeforeShared(t *testing.T) {
	t.Parallel()

	db := setupStockTestDB(t)
	svc := newStockService(t, db)
	ctx := context.Background()
	storeID, productID, variantID := uuid.New(), uuid.New(), uuid.New()

	seedTokens(t, db, storeID, productID, BucketDefault, "a", "b")
	seedTokens(t, db, storeID, productID, BucketShared, "c")

	tokens, err := svc.Take(ctx, storeID, productID, variantID, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tokens)
}

func TestTakeInsufficientLeavesPoolUntouched(t *testing.T) {
	t.Parallel()

	db := setupStockTestDB(t)
	svc := newStockService(t, db)
	ctx := context.Background()
	storeID, productID, variantID := uuid.New(), uuid.New(), uuid.New()

	seedTokens(t, db, storeID, productID, variantID.String(), "v1")
	seedTokens(t, db, storeID, productID, BucketShared, "s1")

	_, err := svc.Take(ctx, storeID, productID, variantID, 3)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock))

	remaining, err := svc.AvailableCount(ctx, storeID, productID, variantID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), remaining)

	var total int64
	require.NoError(t, db.Table("stock_items").Count(&total).Error)
	assert.Equal(t, int64(2), total)
}

func TestTakeInTxRollsBackWithCaller(t *testing.T) {
	t.Parallel()

	db := setupStockTestDB(t)
	svc := newStockService(t, db)
	ctx := context.Background()
	storeID, productID, variantID := uuid.New(), uuid.New(), uuid.New()

	seedTokens(t, db, storeID, productID, BucketDefault, "a", "b")

	abort := fmt.Errorf("caller gave up")
	err := db.Transaction(func(tx *gorm.DB) error {
		tokens, terr := svc.TakeInTx(ctx, tx, storeID, productID, variantID, 2)
		require.NoError(t, terr)
		require.Equal(t, []string{"a", "b"}, tokens)
		return abort
	})
	require.ErrorIs(t, err, abort)

	remaining, err := svc.AvailableCount(ctx, storeID, productID, variantID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), remaining)
}

func TestTakeConcurrentNeverOverAllocates(t *testing.T) {
	t.Parallel()

	db := setupStockTestDB(t)
	svc := newStockService(t, db)
	ctx := context.Background()
	storeID, productID, variantID := uuid.New(), uuid.New(), uuid.New()

	tokens := make([]string, 10)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("tok-%02d", i)
	}
	seedTokens(t, db, storeID, productID, BucketDefault, tokens...)

	var wg sync.WaitGroup
	var mu sync.Mutex
	drawn := map[string]int{}
	failures := 0

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := svc.Take(ctx, storeID, productID, variantID, 3)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock))
				failures++
				return
			}
			for _, token := range got {
				drawn[token]++
			}
		}()
	}
	wg.Wait()

	for token, count := range drawn {
		assert.Equalf(t, 1, count, "token %s drawn more than once", token)
	}
	assert.Equal(t, 9, len(drawn))
	assert.Equal(t, 5, failures)

	remaining, err := svc.AvailableCount(ctx, storeID, productID, variantID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), remaining)
}

func TestAddValidatesBucketAndSkipsBlanks(t *testing.T) {
	t.Parallel()

	db := setupStockTestDB(t)
	svc := newStockService(t, db)
	ctx := context.Background()
	storeID, productID := uuid.New(), uuid.New()

	_, err := svc.Add(ctx, storeID, productID, "bogus", []string{"x"})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	added, err := svc.Add(ctx, storeID, productID, BucketDefault, []string{" a ", "", "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	_, err = svc.Add(ctx, storeID, productID, BucketDefault, []string{"a"})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}
