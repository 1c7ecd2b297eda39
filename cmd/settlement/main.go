package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-retail-settlement.git/internal/cash"
	"github.com/ariefcatur/go-retail-settlement.git/internal/config"
	"github.com/ariefcatur/go-retail-settlement.git/internal/events"
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

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	txr := &postgres.TxRunner{Pool: db, Retry: cfg.TxRetry}

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	pStatus := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicOrderStatus, 1024, log)
	pStatus.Start(ctx)
	pNotif := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicNotifications, 1024, log)
	pNotif.Start(ctx)

	notifier := &notify.KafkaNotifier{Producer: pNotif, Service: cfg.ServiceName + "-settlement"}
	ledgerRepo := &ledger.Repo{
		Pool:              db,
		Tx:                txr,
		Notifier:          notifier,
		LowStockThreshold: int64(cfg.LowStockThreshold),
	}
	svc := &orders.Service{
		Store:    &orders.Repo{Pool: db},
		Stock:    ledgerRepo,
		Promo:    &promo.Repo{Pool: db, Tx: txr},
		Cash:     &cash.Repo{Pool: db, Tx: txr},
		Tx:       txr,
		Notifier: notifier,
		Events:   &orders.KafkaEmitter{Created: pStatus, Status: pStatus, Service: cfg.ServiceName + "-settlement"},
		Log:      log,
	}
	worker := &orders.SettlementWorker{Svc: svc, Rdb: rdb, Log: log}

	group := getenv("SETTLEMENT_GROUP", "settlement-svc")
	workers := mustAtoi(getenv("SETTLEMENT_WORKERS", "8"))
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, events.TopicPaymentSucceeded, workers, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithFields(logrus.Fields{"group": group, "topic": events.TopicPaymentSucceeded,
			"workers": workers}).Info("settlement consumer started")
		return cons.Start(gctx, worker.Handle)
	})
	g.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sig:
			log.Info("shutting down consumer...")
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Errorf("consumer exit: %v", err)
	}
	pStatus.Close()
	pNotif.Close()
	pStatus.WaitClosed()
	pNotif.WaitClosed()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}
