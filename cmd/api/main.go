package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/easonhq/eason/internal/auth"
	"github.com/easonhq/eason/internal/catalog"
	"github.com/easonhq/eason/internal/config"
	"github.com/easonhq/eason/internal/httpx"
	kafkax "github.com/easonhq/eason/internal/kafka"
	"github.com/easonhq/eason/internal/logging"
	"github.com/easonhq/eason/internal/orders"
	"github.com/easonhq/eason/internal/postgres"
	"github.com/easonhq/eason/internal/redisx"
	"github.com/easonhq/eason/internal/users"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Error("db migrate failed", "err", err)
		os.Exit(1)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per topic
	createdProd := kafkax.NewProducer(log, cfg.KafkaBrokers, orders.TopicOrderCreated, 1024)
	createdProd.Start(ctx)
	statusProd := kafkax.NewProducer(log, cfg.KafkaBrokers, orders.TopicStatusChanged, 1024)
	statusProd.Start(ctx)

	// Repos, services, engine
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	userRepo := &users.Repo{DB: db}
	userSvc := users.NewService(userRepo)
	catalogRepo := &catalog.Repo{DB: db}
	orderRepo := &orders.Repo{DB: db}
	engine := orders.NewEngine(log, catalogRepo, orderRepo, createdProd, cfg.ServiceName)

	// Router
	router := httpx.NewRouter()
	(&httpx.AuthHandler{Users: userSvc, Tokens: tokens, Log: log}).Register(router)
	(&httpx.CatalogHandler{Repo: catalogRepo, Tokens: tokens, Log: log}).Register(router)
	(&httpx.OrdersHandler{
		Engine:   engine,
		Repo:     orderRepo,
		Redis:    rdb,
		Producer: statusProd,
		Tokens:   tokens,
		Log:      log,
		Service:  cfg.ServiceName,
	}).Register(router)
	(&httpx.AdminHandler{Users: userRepo, Tokens: tokens, Log: log}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "err", err)
	}

	createdProd.WaitClosed()
	statusProd.WaitClosed()
	log.Info("shutdown complete")
}
