package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/keydeck/keydeck-backend/internal/carts"
	"github.com/keydeck/keydeck-backend/internal/catalog"
	"github.com/keydeck/keydeck-backend/internal/cron"
	"github.com/keydeck/keydeck-backend/internal/delivery"
	"github.com/keydeck/keydeck-backend/internal/notify"
	"github.com/keydeck/keydeck-backend/internal/orders"
	"github.com/keydeck/keydeck-backend/internal/payments"
	"github.com/keydeck/keydeck-backend/internal/stock"
	"github.com/keydeck/keydeck-backend/internal/stores"
	"github.com/keydeck/keydeck-backend/internal/wallet"
	"github.com/keydeck/keydeck-backend/pkg/chat"
	"github.com/keydeck/keydeck-backend/pkg/config"
	"github.com/keydeck/keydeck-backend/pkg/db"
	"github.com/keydeck/keydeck-backend/pkg/logger"
	"github.com/keydeck/keydeck-backend/pkg/metrics"
	"github.com/keydeck/keydeck-backend/pkg/migrate"
	"github.com/keydeck/keydeck-backend/pkg/pix"
	"github.com/keydeck/keydeck-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	chatClient, err := chat.NewClient(context.Background(), cfg.Chat, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create chat client", err)
		os.Exit(1)
	}
	pixClient, err := pix.NewClient(context.Background(), cfg.Pix, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create pix client", err)
		os.Exit(1)
	}

	registry, err := buildJobs(cfg, dbClient, chatClient, pixClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to wire jobs", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Locks:    cron.NewRedisLockFactory(redisClient),
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "worker shutting down gracefully")
}

func buildJobs(cfg *config.Config, dbClient *db.Client, chatClient *chat.Client, pixClient *pix.Client, logg *logger.Logger) (*cron.Registry, error) {
	gormDB := dbClient.DB()

	storesRepo := stores.NewRepository(gormDB)
	catalogRepo := catalog.NewRepository(gormDB)
	stockRepo := stock.NewRepository(gormDB)
	cartsRepo := carts.NewRepository(gormDB)
	ordersRepo := orders.NewRepository(gormDB)
	walletRepo := wallet.NewRepository(gormDB)

	storesSvc, err := stores.NewService(storesRepo)
	if err != nil {
		return nil, err
	}
	catalogSvc, err := catalog.NewService(catalogRepo)
	if err != nil {
		return nil, err
	}
	stockSvc, err := stock.NewService(dbClient, stockRepo, logg)
	if err != nil {
		return nil, err
	}

	notifier := notify.NewChatNotifier(chatClient, logg)

	walletSvc, err := wallet.NewService(
		dbClient,
		walletRepo,
		ordersRepo,
		func(tx *gorm.DB) wallet.OrderSource { return ordersRepo.WithTx(tx) },
		storesRepo,
		cfg.Billing,
		logg,
	)
	if err != nil {
		return nil, err
	}

	pipeline, err := delivery.NewPipeline(
		dbClient,
		ordersRepo,
		cartsRepo,
		func(tx *gorm.DB) (delivery.OrderStore, delivery.CartStore) {
			return ordersRepo.WithTx(tx), cartsRepo.WithTx(tx)
		},
		stockSvc,
		catalogSvc,
		storesSvc,
		walletSvc,
		notifier,
		logg,
	)
	if err != nil {
		return nil, err
	}

	reconciler, err := payments.NewReconciler(ordersRepo, pixClient, pipeline, logg)
	if err != nil {
		return nil, err
	}

	reaper, err := cron.NewCartReaperJob(cron.CartReaperJobParams{
		Logger:     logg,
		DB:         dbClient,
		IdleReader: cartsRepo,
		RepoFactory: func(tx *gorm.DB) (cron.ReaperCartRepo, cron.ReaperOrderRepo) {
			return cartsRepo.WithTx(tx), ordersRepo.WithTx(tx)
		},
		Stores:   storesSvc,
		Notifier: notifier,
		IdleTTL:  cfg.Jobs.CartIdleTTL,
		Interval: cfg.Jobs.ReaperInterval,
	})
	if err != nil {
		return nil, err
	}

	stockRetry, err := cron.NewStockRetryJob(cron.StockRetryJobParams{
		Logger:   logg,
		Retrier:  pipeline,
		Interval: cfg.Jobs.StockRetryInterval,
	})
	if err != nil {
		return nil, err
	}

	paymentSync, err := cron.NewPaymentSyncJob(cron.PaymentSyncJobParams{
		Logger:   logg,
		Sweeper:  reconciler,
		Interval: cfg.Jobs.PaymentSyncInterval,
	})
	if err != nil {
		return nil, err
	}

	walletReconcile, err := cron.NewWalletReconcileJob(cron.WalletReconcileJobParams{
		Logger:     logg,
		Reconciler: walletSvc,
		Interval:   cfg.Jobs.WalletReconcileInterval,
	})
	if err != nil {
		return nil, err
	}

	return cron.NewRegistry(reaper, stockRetry, paymentSync, walletReconcile), nil
}
