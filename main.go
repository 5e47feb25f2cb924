package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	apihttp "gas-billing/internal/api/http"
	"gas-billing/internal/audit"
	"gas-billing/internal/billing/application"
	billing "gas-billing/internal/billing/domain"
	"gas-billing/internal/billing/infrastructure/lease"
	billingrepo "gas-billing/internal/billing/infrastructure/postgres"
	billinginterfaces "gas-billing/internal/billing/interfaces"
	"gas-billing/internal/billing/notify"
	"gas-billing/internal/config"
	"gas-billing/internal/migrations"
	"gas-billing/internal/observability/logging"
	"gas-billing/internal/observability/metrics"
	referencerepo "gas-billing/internal/referencedata/infrastructure/postgres"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("load .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger, err := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("gas billing stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) (err error) {
	db, err := sql.Open("pgx", cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, db.Close()) }()
	db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		return err
	}
	if cfg.DB.AutoMigrate {
		if err := migrations.Up(ctx, db); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	metrics.Init(db, logger)

	leaser, closeLeaser, err := buildLeaser(ctx, cfg.Redis.URL, logger)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, closeLeaser()) }()

	referenceStore := referencerepo.NewStore(db)
	invoiceRepo := billingrepo.NewInvoiceRepository(db)
	errorRepo := billingrepo.NewErrorRepository(db)
	auditRepo := audit.NewRepository(db)

	opts := []application.Option{
		application.WithConcurrency(cfg.Billing.Concurrency),
		application.WithTaxCode(cfg.Billing.TaxCode),
		application.WithRunTimeout(cfg.Billing.RunTimeout),
		application.WithLeaseTTL(cfg.Billing.LeaseTTL),
		application.WithErrorRepository(errorRepo),
		application.WithPublisher(billinginterfaces.NewLoggingPublisher(logger)),
	}
	if cfg.Billing.WebhookURL != "" {
		notifier, err := notify.NewWebhookNotifier(cfg.Billing.WebhookURL)
		if err != nil {
			return err
		}
		opts = append(opts, application.WithNotifier(notifier))
	}
	billingService, err := application.NewBillingService(referenceStore, invoiceRepo, leaser, application.SystemClock{}, logger, opts...)
	if err != nil {
		return err
	}
	invoiceService, err := application.NewInvoiceService(invoiceRepo, errorRepo)
	if err != nil {
		return err
	}

	if cfg.Billing.Schedule.Enabled {
		scheduler, err := application.NewScheduler(billingService, cfg.Billing.Schedule.DayOfMonth, cfg.Billing.Schedule.At, application.SystemClock{}, logger)
		if err != nil {
			return err
		}
		go scheduler.Start(ctx)
		logger.Info("billing scheduler started",
			zap.Int("day_of_month", cfg.Billing.Schedule.DayOfMonth),
			zap.String("at", cfg.Billing.Schedule.At),
		)
	}

	handler, err := billinginterfaces.NewHandler(billingService, invoiceService,
		billinginterfaces.WithAuditLogger(auditRepo),
		billinginterfaces.WithLogger(logger),
		billinginterfaces.WithCurrency(cfg.Billing.Currency),
	)
	if err != nil {
		return err
	}
	router, err := apihttp.NewRouter(apihttp.RouterConfig{
		Billing:      handler,
		DB:           db,
		Logger:       logger,
		JWTSecret:    []byte(cfg.Auth.JWTSecret),
		AuthDisabled: cfg.Auth.Disabled,
	})
	if err != nil {
		return err
	}
	if cfg.Auth.Disabled {
		logger.Warn("auth disabled")
	}

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTP.Addr))
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildLeaser uses Redis when url is set so replicas share run leases.
func buildLeaser(ctx context.Context, url string, logger *zap.Logger) (billing.Leaser, func() error, error) {
	if url == "" {
		logger.Info("run lease: in-process")
		return lease.NewMemoryLeaser(), func() error { return nil }, nil
	}
	client, err := lease.NewRedisClient(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	leaser, err := lease.NewRedisLeaser(client)
	if err != nil {
		return nil, nil, multierr.Append(err, client.Close())
	}
	logger.Info("run lease: redis")
	return leaser, client.Close, nil
}
