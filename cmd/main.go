package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/fjod/go_cart/storefront/internal/address"
	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/config"
	h "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/idempotency"
	"github.com/fjod/go_cart/storefront/internal/identity"
	"github.com/fjod/go_cart/storefront/internal/payment"
	"github.com/fjod/go_cart/storefront/internal/pricing"
	"github.com/fjod/go_cart/storefront/internal/receipt"
	"github.com/fjod/go_cart/storefront/internal/reconcile"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()
	zap.ReplaceGlobals(zlog)

	zlog.Info("storefront starting...")

	taxRate, _ := cfg.Tax()
	shipping, _ := cfg.Shipping()
	engine := pricing.NewEngine(taxRate, shipping)

	backendClient := backend.NewClient(backend.Config{
		BaseURL: cfg.BackendBaseURL,
		Timeout: cfg.BackendTimeout,
	}, zlog)
	cartStore := cart.NewStore(backendClient, zlog)

	hosted := payment.NewHosted(payment.HostedConfig{
		BaseURL:   cfg.PaymentBaseURL,
		ScriptURL: cfg.PaymentScriptURL,
		KeyID:     cfg.PaymentKeyID,
		KeySecret: cfg.PaymentKeySecret,
		StoreName: cfg.StoreName,
		Timeout:   cfg.PaymentTimeout,
	}, zlog)

	// Receipts and payment claims live in Redis when configured, in memory otherwise
	var receipts receipt.Store = receipt.NewMemoryStore()
	var claims idempotency.Store
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			zlog.Fatal("Failed to connect to redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		zlog.Info("Connected to redis", zap.String("addr", cfg.RedisAddr))

		receipts = receipt.NewRedisStore(rdb, cfg.ReceiptTTL)
		claims = idempotency.NewRedisStore(rdb)
	} else {
		mem := idempotency.NewMemoryStore()
		defer mem.Close()
		claims = mem
	}

	// Outbox for orders the backend did not accept after payment
	repo, err := reconcile.NewRepository(cfg.OutboxDriver, cfg.OutboxDSN)
	if err != nil {
		zlog.Fatal("Failed to open outbox database", zap.Error(err))
	}
	defer repo.Close()

	if err := repo.RunMigrations(); err != nil {
		zlog.Fatal("Failed to run migrations", zap.Error(err))
	}
	zlog.Info("Database migrations completed", zap.String("driver", cfg.OutboxDriver))

	var writer reconcile.MessageWriter
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		kw := reconcile.NewKafkaWriter(brokers, cfg.KafkaTopic)
		defer kw.Close()
		writer = kw
		zlog.Info("Escalations published to kafka", zap.Strings("brokers", brokers), zap.String("topic", cfg.KafkaTopic))
	}
	poller := reconcile.NewPoller(repo, backendClient, writer, reconcile.PollerConfig{
		Interval:    cfg.OutboxPollInterval,
		MaxAttempts: cfg.OutboxMaxAttempts,
		SaveTimeout: cfg.BackendTimeout,
	}, zlog)

	header := receipt.DefaultHeader()
	header.StoreName = cfg.StoreName
	generator := receipt.NewGenerator(engine, receipt.WithHeader(header))

	registry := session.NewRegistry(backendClient, checkout.Deps{
		Provider:     hosted,
		Engine:       engine,
		Receipts:     generator,
		ReceiptStore: receipts,
		Orders:       backendClient,
		Outbox:       repo,
		Cart:         cartStore,
		Claims:       claims,
		Currency:     cfg.Currency,
		SaveTimeout:  cfg.BackendTimeout,
		ClaimTTL:     cfg.PaymentDedupe,
		Logger:       zlog,
	}, cfg.SessionIdleTTL, zlog)
	stopWatch := registry.Watch(cartStore)
	defer stopWatch()

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	go poller.Run(bgCtx)
	go registry.Sweep(bgCtx)

	verifier := identity.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)

	router := h.NewRouter(h.RouterConfig{
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		Auth:               verifier.Middleware(zlog),
		Logger:             zlog,
	},
		h.NewCartHandler(cartStore, registry, engine, cfg.BackendTimeout),
		h.NewCheckoutHandler(cartStore, address.NewBook(backendClient), registry, hosted, cfg.RequestTimeout),
		h.NewReceiptHandler(generator, receipts, backendClient, cfg.BackendTimeout),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zlog.Info("Storefront listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down server...")
	stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zlog.Error("server forced to shutdown", zap.Error(err))
	}

	zlog.Info("server exited")
}
