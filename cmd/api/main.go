package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-retail-settlement.git/internal/cash"
	"github.com/ariefcatur/go-retail-settlement.git/internal/catalog"
	"github.com/ariefcatur/go-retail-settlement.git/internal/checkout"
	"github.com/ariefcatur/go-retail-settlement.git/internal/config"
	"github.com/ariefcatur/go-retail-settlement.git/internal/events"
	"github.com/ariefcatur/go-retail-settlement.git/internal/httpx"
	kafkax "github.com/ariefcatur/go-retail-settlement.git/internal/kafka"
	"github.com/ariefcatur/go-retail-settlement.git/internal/ledger"
	"github.com/ariefcatur/go-retail-settlement.git/internal/notify"
	"github.com/ariefcatur/go-retail-settlement.git/internal/orders"
	"github.com/ariefcatur/go-retail-settlement.git/internal/postgres"
	"github.com/ariefcatur/go-retail-settlement.git/internal/promo"
	"github.com/ariefcatur/go-retail-settlement.git/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	log.SetFormatter(&logrus.JSONFormatter{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	txr := &postgres.TxRunner{Pool: db, Retry: cfg.TxRetry}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers: created, status, notifikasi
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicOrderCreated, 1024, log)
	pCreated.Start(ctx)
	pStatus := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicOrderStatus, 1024, log)
	pStatus.Start(ctx)
	pNotif := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicNotifications, 1024, log)
	pNotif.Start(ctx)

	notifier := &notify.KafkaNotifier{Producer: pNotif, Service: cfg.ServiceName}

	// Repos & services
	ledgerRepo := &ledger.Repo{
		Pool:              db,
		Tx:                txr,
		Notifier:          notifier,
		LowStockThreshold: int64(cfg.LowStockThreshold),
	}
	assembler := &checkout.Assembler{
		Catalog: &catalog.PGLookup{Pool: db},
		Stock:   ledgerRepo,
	}
	promoRepo := &promo.Repo{Pool: db, Tx: txr}
	cashRepo := &cash.Repo{Pool: db, Tx: txr}
	svc := &orders.Service{
		Store:    &orders.Repo{Pool: db},
		Stock:    ledgerRepo,
		Promo:    promoRepo,
		Cash:     cashRepo,
		Tx:       txr,
		Notifier: notifier,
		Events:   &orders.KafkaEmitter{Created: pCreated, Status: pStatus, Service: cfg.ServiceName},
		Log:      log,
	}

	// Router & handlers
	validate := validator.New()
	router := httpx.NewRouter()
	(&httpx.OrdersHandler{Assembler: assembler, Svc: svc, Promo: promoRepo, Redis: rdb, Validate: validate}).Register(router)
	(&httpx.InventoryHandler{Ledger: ledgerRepo, Validate: validate}).Register(router)
	(&httpx.PromoHandler{Repo: promoRepo, Assembler: assembler, Validate: validate}).Register(router)
	(&httpx.CashHandler{Repo: cashRepo, Validate: validate}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Infof("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	pCreated.Close()
	pStatus.Close()
	pNotif.Close()
	cancel()
	pCreated.WaitClosed()
	pStatus.WaitClosed()
	pNotif.WaitClosed()
}
