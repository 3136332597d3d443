package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/keydeck/keydeck-backend/api/routes"
	"github.com/keydeck/keydeck-backend/internal/carts"
	"github.com/keydeck/keydeck-backend/internal/catalog"
	"github.com/keydeck/keydeck-backend/internal/delivery"
	"github.com/keydeck/keydeck-backend/internal/notify"
	"github.com/keydeck/keydeck-backend/internal/orders"
	"github.com/keydeck/keydeck-backend/internal/stock"
	"github.com/keydeck/keydeck-backend/internal/stores"
	"github.com/keydeck/keydeck-backend/internal/wallet"
	"github.com/keydeck/keydeck-backend/pkg/chat"
	"github.com/keydeck/keydeck-backend/pkg/config"
	"github.com/keydeck/keydeck-backend/pkg/db"
	"github.com/keydeck/keydeck-backend/pkg/logger"
	"github.com/keydeck/keydeck-backend/pkg/migrate"
	"github.com/keydeck/keydeck-backend/pkg/pix"
	"github.com/keydeck/keydeck-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	graph, err := buildServices(cfg, dbClient, chatClient, pixClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:  cfg,
			Logger:  logg,
			DB:      dbClient,
			Redis:   redisClient,
			Carts:   graph.carts,
			Orders:  graph.orders,
			Stock:   graph.stock,
			Stores:  graph.stores,
			Wallet:  graph.wallet,
			Retrier: graph.pipeline,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

type serviceGraph struct {
	carts    carts.Service
	orders   orders.Service
	stock    stock.Service
	stores   stores.Service
	wallet   wallet.Service
	pipeline *delivery.Pipeline
}

func buildServices(cfg *config.Config, dbClient *db.Client, chatClient *chat.Client, pixClient *pix.Client, logg *logger.Logger) (*serviceGraph, error) {
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
	cartsSvc, err := carts.NewService(dbClient, cartsRepo, catalogSvc, logg)
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

	ordersSvc, err := orders.NewService(
		dbClient,
		ordersRepo,
		cartsRepo,
		catalogSvc,
		orders.NewConfirmationLocks(),
		pipeline,
		pixClient,
		logg,
	)
	if err != nil {
		return nil, err
	}

	return &serviceGraph{
		carts:    cartsSvc,
		orders:   ordersSvc,
		stock:    stockSvc,
		stores:   storesSvc,
		wallet:   walletSvc,
		pipeline: pipeline,
	}, nil
}
