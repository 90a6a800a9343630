package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/altamontana/booking-api/internal/checkout"
	"github.com/altamontana/booking-api/internal/config"
	"github.com/altamontana/booking-api/internal/database"
	"github.com/altamontana/booking-api/internal/handler"
	"github.com/altamontana/booking-api/internal/logger"
	"github.com/altamontana/booking-api/internal/middleware"
	"github.com/altamontana/booking-api/internal/pending"
	"github.com/altamontana/booking-api/internal/queue"
	"github.com/altamontana/booking-api/internal/reconcile"
	"github.com/altamontana/booking-api/internal/repository"
	"github.com/altamontana/booking-api/internal/router"
	"github.com/altamontana/booking-api/internal/secrets"
	"github.com/altamontana/booking-api/internal/webpay"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, lg *zap.Logger) error {
	db, err := database.Open(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// Redis backs the pending store, the response cache and the rate
	// limiter.  Without it the service still takes payments; the reconciler
	// falls back to the bookings table.
	var rdb *redis.Client
	var pendingStore interface {
		checkout.PendingSaver
		reconcile.PendingStore
	} = pending.NopStore{}
	if client, err := config.NewRedisClient(); err != nil {
		lg.Warn("redis unavailable, running without cache and pending store", zap.Error(err))
	} else {
		rdb = client
		defer rdb.Close()
		pendingStore = pending.NewRedisStore(rdb, cfg.Pending)
	}

	if err := resolveWebpaySecret(ctx, &cfg, lg); err != nil {
		return err
	}

	experiences := repository.NewExperienceRepo(db)
	bookings := repository.NewBookingRepo(db)
	payments := repository.NewPaymentRepo(db)
	siteContent := repository.NewSiteContentRepo(db)
	users := repository.NewUserRepo(db)

	gateway := webpay.NewClient(cfg.Webpay, webpay.NewHTTPClient(cfg.Webpay.Timeout), lg)
	svc := checkout.NewService(checkout.Deps{
		Gateway:       gateway,
		Experiences:   experiences,
		Payments:      payments,
		Bookings:      bookings,
		Pending:       pendingStore,
		PublicBaseURL: cfg.PublicBaseURL,
		Logger:        lg,
	})
	publisher := queue.NewPublisher(cfg.Broker, lg)
	rec := reconcile.New(reconcile.Deps{
		Committer:   svc,
		Pending:     pendingStore,
		Bookings:    bookings,
		Experiences: experiences,
		Payments:    payments,
		Publisher:   publisher,
		Logger:      lg,
	})

	if cfg.Broker.Enabled && cfg.Broker.ConsumerEnabled {
		consumer := queue.NewConsumer(cfg.Broker, lg)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				lg.Error("voucher consumer stopped", zap.Error(err))
			}
		}()
	}

	var purge func(context.Context) error
	if rdb != nil {
		purge = func(ctx context.Context) error { return middleware.PurgeCache(ctx, cfg.Cache, rdb) }
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(lg))
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{cfg.ClientOrigin},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	router.RegisterRoutes(e, cfg.UploadsDir)
	router.RegisterAPI(e, cfg, rdb, router.Handlers{
		Auth:        handler.NewAuthHandler(cfg, users, lg),
		Experiences: handler.NewExperienceHandler(experiences, cfg.UploadsDir, purge, lg),
		Bookings:    handler.NewBookingHandler(bookings, experiences, rec, cfg.ClientOrigin, lg),
		SiteContent: handler.NewSiteContentHandler(siteContent, purge, lg),
		Webpay:      handler.NewWebpayHandler(svc, rec, cfg.ClientOrigin, lg),
	}, lg)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		lg.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("webpay", cfg.Webpay.BaseURL))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// resolveWebpaySecret replaces the provider API secret with the one held in
// AWS Secrets Manager when WEBPAY_API_SECRET_ARN is set.
func resolveWebpaySecret(ctx context.Context, cfg *config.Config, lg *zap.Logger) error {
	var provider secrets.Provider = secrets.EnvProvider{}
	name := "webpay-api-secret"
	if cfg.Webpay.APISecretARN != "" {
		sm, err := secrets.NewAWSProvider(ctx, os.Getenv("AWS_REGION"), lg)
		if err != nil {
			return err
		}
		provider, name = sm, cfg.Webpay.APISecretARN
	}

	secret, err := provider.GetSecret(ctx, name)
	switch {
	case errors.Is(err, secrets.ErrNotFound) && cfg.Webpay.APISecretARN == "":
		// integration defaults stay in place
		return nil
	case err != nil:
		return err
	}
	cfg.Webpay.APISecret = secret
	return nil
}
