package wallet

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/keydeck/keydeck-backend/internal/orders"
	"github.com/keydeck/keydeck-backend/internal/stores"
	"github.com/keydeck/keydeck-backend/pkg/config"
	"github.com/keydeck/keydeck-backend/pkg/db/models"
	"github.com/keydeck/keydeck-backend/pkg/enums"
	pkgerrors "github.com/keydeck/keydeck-backend/pkg/errors"
	"github.com/keydeck/keydeck-backend/pkg/logger"
	"github.com/keydeck/keydeck-backend/pkg/pagination"
)

func setupWalletTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:wallet_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS stores (
  id TEXT PRIMARY KEY,
  guild_id TEXT NOT NULL,
  name TEXT NOT NULL,
  owner_user_id TEXT NOT NULL,
  staff_channel_id TEXT,
  fee_percent REAL,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  store_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  variant_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  gross_cents INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  payment_provider TEXT NOT NULL DEFAULT 'manual',
  provider_payment_id TEXT,
  provider_status TEXT,
  wallet_credited_at DATETIME,
  delivery_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS order_confirmations (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  source TEXT NOT NULL,
  actor_id TEXT NOT NULL,
  note TEXT,
  created_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS order_events (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  type TEXT NOT NULL,
  details TEXT,
  created_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS wallet_accounts (
  id TEXT PRIMARY KEY,
  owner_user_id TEXT NOT NULL,
  balance_cents INTEGER NOT NULL DEFAULT 0,
  cumulative_sales_cents INTEGER NOT NULL DEFAULT 0,
  plan_expires_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_wallet_accounts_owner ON wallet_accounts (owner_user_id);`,
		`CREATE TABLE IF NOT EXISTS wallet_entries (
  id TEXT PRIMARY KEY,
  account_id TEXT NOT NULL,
  owner_user_id TEXT NOT NULL,
  type TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'confirmed',
  order_id TEXT,
  metadata TEXT,
  created_at DATETIME
);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_wallet_entries_order_type ON wallet_entries (order_id, type);`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type walletFixture struct {
	db      *gorm.DB
	svc     Service
	repo    Repository
	orders  orders.Repository
	stores  stores.Repository
	storeID uuid.UUID
}

func defaultBilling() config.BillingConfig {
	return config.BillingConfig{FeePercent: 5, BonusUnitCents: 100000, BonusDaysPerUnit: 1}
}

func newWalletFixture(t *testing.T, billing config.BillingConfig) *walletFixture {
	t.Helper()

	db := setupWalletTestDB(t)
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})

	fix := &walletFixture{
		db:      db,
		repo:    NewRepository(db),
		orders:  orders.NewRepository(db),
		stores:  stores.NewRepository(db),
		storeID: uuid.New(),
	}

	store := &models.Store{
		ID:          fix.storeID,
		GuildID:     "guild-1",
		Name:        "Key Shop",
		OwnerUserID: "owner-1",
		IsActive:    true,
	}
	require.NoError(t, db.Create(store).Error)

	bind := func(tx *gorm.DB) OrderSource { return fix.orders.WithTx(tx) }
	svc, err := NewService(gormTxRunner{db: db}, fix.repo, fix.orders, bind, fix.stores, billing, logg)
	require.NoError(t, err)
	fix.svc = svc
	return fix
}

func (f *walletFixture) seedDeliveredOrder(t *testing.T, grossCents int) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:         uuid.New(),
		CartID:     uuid.New(),
		StoreID:    f.storeID,
		ProductID:  uuid.New(),
		VariantID:  uuid.New(),
		Quantity:   1,
		GrossCents: grossCents,
		Status:     enums.OrderStatusDelivered,
	}
	require.NoError(t, f.orders.Create(context.Background(), order))
	return order
}

func TestCreditForOrderAppliesFeeOnce(t *testing.T) {
	t.Parallel()

	fix := newWalletFixture(t, defaultBilling())
	ctx := context.Background()
	order := fix.seedDeliveredOrder(t, 1000)

	require.NoError(t, fix.svc.CreditForOrder(ctx, order.ID))

	account, err := fix.svc.GetAccount(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, int64(950), account.BalanceCents)
	assert.Equal(t, int64(950), account.CumulativeSalesCents)

	reloaded, err := fix.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.WalletCreditedAt)

	// Replays are no-ops.
	require.NoError(t, fix.svc.CreditForOrder(ctx, order.ID))
	account, err = fix.svc.GetAccount(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, int64(950), account.BalanceCents)

	var entries int64
	require.NoError(t, fix.db.Table("wallet_entries").Count(&entries).Error)
	assert.Equal(t, int64(1), entries)
}

func TestCreditForOrderSurvivesLostMarker(t *testing.T) {
	t.Parallel()

	fix := newWalletFixture(t, defaultBilling())
	ctx := context.Background()
	order := fix.seedDeliveredOrder(t, 1000)

	require.NoError(t, fix.svc.CreditForOrder(ctx, order.ID))

	// Simulate a partial write: the ledger entry landed but the order-level
	// marker was lost.
	require.NoError(t, fix.db.Table("orders").Where("id = ?", order.ID).
		Update("wallet_credited_at", nil).Error)

	require.NoError(t, fix.svc.CreditForOrder(ctx, order.ID))

	account, err := fix.svc.GetAccount(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, int64(950), account.BalanceCents)

	reloaded, err := fix.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.NotNil(t, reloaded.WalletCreditedAt)
}

func TestCreditForOrderConcurrentCreditsOnce(t *testing.T) {
	t.Parallel()

	fix := newWalletFixture(t, defaultBilling())
	ctx := context.Background()
	order := fix.seedDeliveredOrder(t, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Unique-index collisions settle concurrent credits; errors from
			// sqlite's single-writer lock are acceptable here.
			_ = fix.svc.CreditForOrder(ctx, order.ID)
		}()
	}
	wg.Wait()

	require.NoError(t, fix.svc.CreditForOrder(ctx, order.ID))

	account, err := fix.svc.GetAccount(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, int64(950), account.BalanceCents)

	var entries int64
	require.NoError(t, fix.db.Table("wallet_entries").Count(&entries).Error)
	assert.Equal(t, int64(1), entries)
}

func TestCreditRejectsUndeliveredOrder(t *testing.T) {
	t.Parallel()

	fix := newWalletFixture(t, defaultBilling())
	ctx := context.Background()
	order := fix.seedDeliveredOrder(t, 1000)
	require.NoError(t, fix.db.Table("orders").Where("id = ?", order.ID).
		Update("status", enums.OrderStatusPending).Error)

	err := fix.svc.CreditForOrder(ctx, order.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestCreditUsesStoreFeeOverride(t *testing.T) {
	t.Parallel()

	fix := newWalletFixture(t, defaultBilling())
	ctx := context.Background()
	fee := 10.0
	require.NoError(t, fix.db.Table("stores").Where("id = ?", fix.storeID).
		Update("fee_percent", fee).Error)
	order := fix.seedDeliveredOrder(t, 1000)

	require.NoError(t, fix.svc.CreditForOrder(ctx, order.ID))

	account, err := fix.svc.GetAccount(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, int64(900), account.BalanceCents)
}

func (f *walletFixture) seedPlanExpiry(t *testing.T, expiry time.Time) {
	t.Helper()
	account, err := f.repo.FindOrCreateAccount(context.Background(), "owner-1")
	require.NoError(t, err)
	require.NoError(t, f.repo.SetPlanExpiry(context.Background(), account.ID, expiry))
}

func TestCreditExtendsPlanPerBonusUnit(t *testing.T) {
	t.Parallel()

	billing := config.BillingConfig{FeePercent: 0, BonusUnitCents: 1000, BonusDaysPerUnit: 2}
	fix := newWalletFixture(t, billing)
	ctx := context.Background()

	planBase := time.Now().UTC().AddDate(0, 0, 10).Truncate(time.Second)
	fix.seedPlanExpiry(t, planBase)

	// 2500 cents crosses the 1000-cent unit twice: 4 bonus days on top of
	// the current expiry.
	order := fix.seedDeliveredOrder(t, 2500)
	require.NoError(t, fix.svc.CreditForOrder(ctx, order.ID))

	account, err := fix.svc.GetAccount(ctx, "owner-1")
	require.NoError(t, err)
	require.NotNil(t, account.PlanExpiresAt)
	assert.Equal(t, planBase.AddDate(0, 0, 4).Unix(), account.PlanExpiresAt.Unix())

	// 400 more stays inside the third unit: no extension.
	second := fix.seedDeliveredOrder(t, 400)
	require.NoError(t, fix.svc.CreditForOrder(ctx, second.ID))
	account2, err := fix.svc.GetAccount(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, account.PlanExpiresAt.Unix(), account2.PlanExpiresAt.Unix())

	// 200 more crosses into the third unit: extends from the current expiry.
	third := fix.seedDeliveredOrder(t, 200)
	require.NoError(t, fix.svc.CreditForOrder(ctx, third.ID))
	account3, err := fix.svc.GetAccount(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, account.PlanExpiresAt.AddDate(0, 0, 2).Unix(), account3.PlanExpiresAt.Unix())
}

func TestCreditSkipsBonusWithoutActivePlan(t *testing.T) {
	t.Parallel()

	billing := config.BillingConfig{FeePercent: 0, BonusUnitCents: 1000, BonusDaysPerUnit: 2}

	t.Run("no plan at all", func(t *testing.T) {
		t.Parallel()
		fix := newWalletFixture(t, billing)
		ctx := context.Background()

		order := fix.seedDeliveredOrder(t, 2500)
		require.NoError(t, fix.svc.CreditForOrder(ctx, order.ID))

		account, err := fix.svc.GetAccount(ctx, "owner-1")
		require.NoError(t, err)
		assert.Equal(t, int64(2500), account.CumulativeSalesCents)
		assert.Nil(t, account.PlanExpiresAt)
	})

	t.Run("lapsed plan", func(t *testing.T) {
		t.Parallel()
		fix := newWalletFixture(t, billing)
		ctx := context.Background()

		lapsed := time.Now().UTC().AddDate(0, 0, -3).Truncate(time.Second)
		fix.seedPlanExpiry(t, lapsed)

		order := fix.seedDeliveredOrder(t, 2500)
		require.NoError(t, fix.svc.CreditForOrder(ctx, order.ID))

		account, err := fix.svc.GetAccount(ctx, "owner-1")
		require.NoError(t, err)
		assert.Equal(t, int64(2500), account.CumulativeSalesCents)
		require.NotNil(t, account.PlanExpiresAt)
		assert.Equal(t, lapsed.Unix(), account.PlanExpiresAt.Unix())
	})
}

func TestCreditRoundsFeeNotNet(t *testing.T) {
	t.Parallel()

	fix := newWalletFixture(t, defaultBilling())
	ctx := context.Background()

	// 5% of 1010 is 50.5; the fee rounds to 51, so the seller nets 959.
	order := fix.seedDeliveredOrder(t, 1010)
	require.NoError(t, fix.svc.CreditForOrder(ctx, order.ID))

	account, err := fix.svc.GetAccount(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, int64(959), account.BalanceCents)
}

func TestConcurrentCreditsShareCumulativeTotals(t *testing.T) {
	t.Parallel()

	billing := config.BillingConfig{FeePercent: 0, BonusUnitCents: 1000, BonusDaysPerUnit: 1}
	fix := newWalletFixture(t, billing)
	ctx := context.Background()

	planBase := time.Now().UTC().AddDate(0, 0, 10).Truncate(time.Second)
	fix.seedPlanExpiry(t, planBase)

	first := fix.seedDeliveredOrder(t, 600)
	second := fix.seedDeliveredOrder(t, 600)

	// Each credit locks the account row before reading it, so whichever
	// transaction commits second sees the other's cumulative total. Errors
	// from sqlite's single-writer lock are settled by the retries below.
	var wg sync.WaitGroup
	for _, id := range []uuid.UUID{first.ID, second.ID} {
		wg.Add(1)
		go func(orderID uuid.UUID) {
			defer wg.Done()
			_ = fix.svc.CreditForOrder(ctx, orderID)
		}(id)
	}
	wg.Wait()
	require.NoError(t, fix.svc.CreditForOrder(ctx, first.ID))
	require.NoError(t, fix.svc.CreditForOrder(ctx, second.ID))

	account, err := fix.svc.GetAccount(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1200), account.CumulativeSalesCents)

	// 0 -> 600 crosses nothing, 600 -> 1200 crosses exactly one unit.
	require.NotNil(t, account.PlanExpiresAt)
	assert.Equal(t, planBase.AddDate(0, 0, 1).Unix(), account.PlanExpiresAt.Unix())
}

func TestReconcileUncreditedSweep(t *testing.T) {
	t.Parallel()

	fix := newWalletFixture(t, defaultBilling())
	ctx := context.Background()

	first := fix.seedDeliveredOrder(t, 1000)
	second := fix.seedDeliveredOrder(t, 2000)

	require.NoError(t, fix.svc.ReconcileUncredited(ctx, 100))

	account, err := fix.svc.GetAccount(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2850), account.BalanceCents)

	for _, id := range []uuid.UUID{first.ID, second.ID} {
		order, err := fix.orders.FindByID(ctx, id)
		require.NoError(t, err)
		assert.NotNil(t, order.WalletCreditedAt)
	}
}

func TestListEntriesPagesWithCursor(t *testing.T) {
	t.Parallel()

	fix := newWalletFixture(t, defaultBilling())
	ctx := context.Background()

	account, err := fix.repo.FindOrCreateAccount(ctx, "owner-1")
	require.NoError(t, err)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		orderID := uuid.New()
		entry := &models.WalletEntry{
			ID:          uuid.New(),
			AccountID:   account.ID,
			OwnerUserID: "owner-1",
			Type:        enums.WalletEntryTypeSaleCredit,
			AmountCents: int64(100 * (i + 1)),
			Status:      "confirmed",
			OrderID:     &orderID,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, fix.db.Create(entry).Error)
	}

	first, cursor, err := fix.svc.ListEntries(ctx, "owner-1", pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.NotEmpty(t, cursor)
	assert.Equal(t, int64(500), first[0].AmountCents)
	assert.Equal(t, int64(400), first[1].AmountCents)

	second, cursor, err := fix.svc.ListEntries(ctx, "owner-1", pagination.Params{Limit: 2, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, second, 2)
	require.NotEmpty(t, cursor)
	assert.Equal(t, int64(300), second[0].AmountCents)

	last, cursor, err := fix.svc.ListEntries(ctx, "owner-1", pagination.Params{Limit: 2, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, int64(100), last[0].AmountCents)
	assert.Empty(t, cursor)

	_, _, err = fix.svc.ListEntries(ctx, "owner-1", pagination.Params{Cursor: "!!not-base64!!"})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}
