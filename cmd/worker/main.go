package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/easonhq/eason/internal/config"
	kafkax "github.com/easonhq/eason/internal/kafka"
	"github.com/easonhq/eason/internal/logging"
	"github.com/easonhq/eason/internal/ordercache"
	"github.com/easonhq/eason/internal/orders"
	"github.com/easonhq/eason/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.ServiceName + "-worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &ordercache.Service{
		Redis:       rdb,
		Log:         log,
		ServiceName: cfg.ServiceName + "-worker",
	}

	group := getenv("WORKER_GROUP", "eason-worker")
	workers := atoi(os.Getenv("WORKER_CONCURRENCY"), 4)

	g, gctx := errgroup.WithContext(ctx)
	for _, topic := range []string{orders.TopicOrderCreated, orders.TopicStatusChanged} {
		cons := kafkax.NewConsumer(log, cfg.KafkaBrokers, group, topic, workers)
		g.Go(func() error {
			log.Info("consumer started", "group", group, "topic", topic, "workers", workers)
			return cons.Start(gctx, svc.Handle)
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("consumer exit", "err", err)
		os.Exit(1)
	}
	log.Info("worker shutdown complete")
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoi(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
