package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"keystore/internal/config"
	"keystore/internal/handler"
	"keystore/internal/infra/broker"
	"keystore/internal/infra/cache"
	"keystore/internal/infra/db"
	"keystore/internal/infra/payment"
	infraRepo "keystore/internal/infra/repository"
	"keystore/internal/logging"
	"keystore/internal/server"
	"keystore/internal/usecase"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now().UTC()
}

func main() {
	if err := run(); err != nil {
		slog.Error("exit", "err", err)
		os.Exit(1)
	}
}

func run() error {
	//設定（不正ならここで止める）
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.New(cfg.Log, os.Stdout)
	slog.SetDefault(log)

	//DB接続
	gormDB, err := db.Connect(cfg.DB, log)
	if err != nil {
		return err
	}
	if cfg.DB.AutoMigrate {
		if err := db.Migrate(gormDB); err != nil {
			return err
		}
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	//外部サービス
	gateway := payment.NewStripeGateway(cfg.Stripe)

	rdb := cache.NewRedisClient(cfg.Redis)
	defer rdb.Close()
	revalidator := cache.NewRedisRevalidator(rdb, cfg.Redis)

	publisher, err := broker.New(cfg.Broker)
	if err != nil {
		return err
	}
	defer publisher.Close()

	//Repository（GORM実装）生成
	txm := infraRepo.NewTxManagerGorm(gormDB)
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	outboxRepo := infraRepo.NewOutboxGormRepository(gormDB)

	//usecaseに渡す部品
	idGen := &uuidGenerator{}
	clock := &realClock{}

	//Usecase生成
	inventory := usecase.NewInventoryReconciler(txm, revalidator, clock, log)
	checkoutUC := usecase.NewCheckoutUsecase(orderRepo, productRepo, txm, gateway, idGen, clock, log, usecase.CheckoutOptions{
		ProviderAttempts: cfg.Checkout.ProviderAttempts,
		ProviderBackoff:  cfg.Checkout.ProviderBackoff,
		Currency:         cfg.Stripe.Currency,
	})
	fulfillmentUC := usecase.NewFulfillmentUsecase(txm, inventory, idGen, clock, log)
	webhookUC := usecase.NewWebhookUsecase(gateway, fulfillmentUC, txm, clock, log)
	orderUC := usecase.NewOrderUsecase(txm)
	adminOrderUC := usecase.NewAdminOrderUsecase(txm, gateway, inventory, clock, log)
	productUC := usecase.NewProductUsecase(txm, inventory, clock, log)
	relay := usecase.NewOutboxRelay(outboxRepo, publisher, clock, log, usecase.RelayOptions{
		PollInterval: cfg.Outbox.PollInterval,
		BatchSize:    cfg.Outbox.BatchSize,
		MaxAttempts:  cfg.Outbox.MaxAttempts,
		BaseBackoff:  cfg.Outbox.BaseBackoff,
		MaxBackoff:   cfg.Outbox.MaxBackoff,
	})

	//Handler生成
	srv := server.New(cfg, log, server.Handlers{
		Health:     handler.NewHealthHandler(sqlDB),
		Product:    handler.NewProductHandler(productUC),
		Checkout:   handler.NewCheckoutHandler(checkoutUC),
		Webhook:    handler.NewWebhookHandler(webhookUC),
		Order:      handler.NewOrderHandler(orderUC),
		AdminOrder: handler.NewAdminOrderHandler(adminOrderUC),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//HTTPサーバとoutbox relayを並べて動かす
	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		return relay.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
