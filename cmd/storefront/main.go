package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Skotchmaster/grocery_web/internal/apiclient"
	"github.com/Skotchmaster/grocery_web/internal/auth"
	"github.com/Skotchmaster/grocery_web/internal/cart"
	"github.com/Skotchmaster/grocery_web/internal/checkout"
	"github.com/Skotchmaster/grocery_web/internal/config"
	"github.com/Skotchmaster/grocery_web/internal/db"
	"github.com/Skotchmaster/grocery_web/internal/device"
	"github.com/Skotchmaster/grocery_web/internal/events"
	"github.com/Skotchmaster/grocery_web/internal/httpserver"
	"github.com/Skotchmaster/grocery_web/internal/logging"
	"github.com/Skotchmaster/grocery_web/internal/middleware/common"
	"github.com/Skotchmaster/grocery_web/internal/middleware/csrf"
	loggingmw "github.com/Skotchmaster/grocery_web/internal/middleware/logging"
	"github.com/Skotchmaster/grocery_web/internal/notify"
	"github.com/Skotchmaster/grocery_web/internal/orders"
	"github.com/Skotchmaster/grocery_web/internal/reviews"
	"github.com/Skotchmaster/grocery_web/internal/search"
	"github.com/Skotchmaster/grocery_web/internal/session"
	"github.com/Skotchmaster/grocery_web/internal/upload"
	"github.com/Skotchmaster/grocery_web/internal/wishlist"
)

func main() {
	cfg := config.Load()

	logger := logging.New(cfg.LogLevel, cfg.ServiceName)
	slog.SetDefault(logger)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := session.Open(initCtx, cfg.SessionDriver, cfg.SessionDSN, cfg.SessionSealKey)
	if err != nil {
		cancel()
		log.Fatalf("session store: %v", err)
	}
	checkoutDB, err := db.Open(initCtx, cfg.CheckoutDriver, cfg.CheckoutDSN)
	if err != nil {
		cancel()
		log.Fatalf("checkout db open: %v", err)
	}
	repo, err := checkout.NewGormRepo(checkoutDB)
	if err != nil {
		cancel()
		log.Fatalf("checkout db migrate: %v", err)
	}

	client := apiclient.NewClient(cfg.BackendURL, cfg.BackendTimeout)
	client.AssetURL = cfg.AssetURL
	client.PaymentReturnURL = cfg.PaymentReturnURL

	backend := auth.APIBackend{Client: client}
	users := auth.NewManager(apiclient.RoleUser, store, backend, logger)
	admins := auth.NewManager(apiclient.RoleAdmin, store, backend, logger)
	auth.Link(users, admins)
	client.OnSessionExpired = func(ctx context.Context, cred apiclient.Credentials) {
		if cred.Role == apiclient.RoleAdmin {
			admins.Expire(ctx, cred.DeviceID)
			return
		}
		users.Expire(ctx, cred.DeviceID)
	}

	pub := events.Open(cfg.KafkaBrokers, logger)
	topics := events.NewTopics(cfg.KafkaTopicPrefix)

	var searcher search.Searcher = search.BackendSearcher{API: client}
	var indexer search.ProductIndexer
	if cfg.ESURL != "" {
		esClient, err := search.NewClient(initCtx, cfg.ESURL, cfg.ESUser, cfg.ESPassword)
		if err != nil {
			logger.Warn("elasticsearch_unavailable", "error", err)
		} else {
			searcher = search.Fallback{
				Primary:   search.ElasticSearcher{Client: esClient, Index: cfg.ESIndex},
				Secondary: searcher,
				Log:       logger,
			}
			indexer = search.NewIndexer(esClient, cfg.ESIndex, logger)
		}
	}
	cancel()

	carts := cart.NewService(client, logger)
	poller := notify.NewPoller(client, store, pub, topics.Admin, logger)

	deps := &httpserver.Deps{
		API:      client,
		Users:    users,
		Admins:   admins,
		Cart:     carts,
		Wishlist: wishlist.NewService(client, logger),
		Orders:   orders.NewService(client, logger),
		Reviews:  reviews.NewService(client, logger),
		Checkout: checkout.NewService(client, carts, repo, store, pub, topics,
			checkout.FeeRule{FreeCity: cfg.FreeDeliveryCity, Fee: cfg.DeliveryFee}, logger),
		Search:  searcher,
		Indexer: indexer,
		Notify:  poller,
		Uploads: upload.Validator{MaxBytes: cfg.MaxUploadBytes},

		Ready: func(ctx context.Context) error { return ping(ctx, checkoutDB) },
	}

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	e.Use(common.Common("10M")...)
	e.Use((&device.Issuer{Secret: []byte(cfg.DeviceSecret), Secure: cfg.CookieSecure}).Middleware())
	e.Use(loggingmw.RequestLogger(logger))

	csrfCfg := csrf.DefaultConfig()
	csrfCfg.Secure = cfg.CookieSecure
	csrfCfg.SkipPaths = []string{"/health/*"}
	e.Use(csrf.Middleware(csrfCfg))

	httpserver.Register(e, deps)

	workers, stopWorkers := context.WithCancel(context.Background())
	go users.Run(workers, cfg.UserRevalidateInterval)
	go admins.Run(workers, cfg.AdminRevalidateInterval)
	go poller.Run(workers, cfg.PendingPollInterval)

	go func() {
		logger.Info("storefront listening", "addr", cfg.ListenAddr)
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("echo start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")

	stopWorkers()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo_shutdown_error", "error", err)
	}
	if err := pub.Close(); err != nil {
		logger.Error("kafka_close_error", "error", err)
	}
	if sqlDB, err := checkoutDB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db_close_error", "error", err)
		}
	}

	logger.Info("storefront stopped")
}

func ping(ctx context.Context, gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
