// Package app wires configuration, storage, domain services, and the HTTP
// server into a runnable checkout API.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/vendora/internal/domain/cart"
	"github.com/xenking/vendora/internal/domain/commission"
	"github.com/xenking/vendora/internal/domain/coupon"
	"github.com/xenking/vendora/internal/domain/order"
	"github.com/xenking/vendora/internal/domain/pricing"
	"github.com/xenking/vendora/internal/handler"
	"github.com/xenking/vendora/internal/notify"
	"github.com/xenking/vendora/internal/storage/postgres"
	"github.com/xenking/vendora/pkg/health"
	"github.com/xenking/vendora/pkg/httpmiddleware"
)

// Capabilities are the external integrations the processor depends on.
// They are injected by the binary so deployments can swap providers.
type Capabilities struct {
	Tax      pricing.TaxQuoter
	Shipping pricing.ShippingQuoter
	Payments order.PaymentGateway
}

// Run creates all dependencies, starts the HTTP server, and handles
// graceful shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config, caps Capabilities) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories and the stock ledger.
	productRepo := postgres.NewProductRepository(pool)
	couponRepo := postgres.NewCouponRepository(pool)
	cartRepo := postgres.NewCartRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	commissionRepo := postgres.NewCommissionRepository(pool)
	ledger := postgres.NewStockLedger(pool, cfg.ReservationTTL)
	ledger.StartSweeper(ctx, cfg.SweepInterval, func(err error) {
		lg.Warn("Reservation sweep failed", zap.Error(err))
	})

	// Domain services.
	defaultRate, err := decimal.NewFromString(cfg.PlatformFeeRate)
	if err != nil {
		return errors.Wrap(err, "parse platform fee rate")
	}
	couponValidator := coupon.NewRepoValidator(couponRepo, cfg.DefaultCurrency)
	pricingEngine := pricing.NewEngine(caps.Tax, caps.Shipping)
	cartSvc := cart.NewService(productRepo, couponValidator, pricingEngine, cartRepo, cfg.DefaultCurrency, cfg.CartTTL)
	commissions := commission.NewCalculator(postgres.NewVendorRates(pool, defaultRate), commissionRepo)
	processor := order.NewProcessor(
		ledger, productRepo, pricingEngine, couponValidator,
		caps.Payments, commissions, orderRepo, cartRepo,
	)

	// Event publishing.
	var notifier notify.Notifier = notify.Nop{}
	if cfg.AMQPURL != "" {
		amqpNotifier, err := notify.NewAMQPNotifier(cfg.AMQPURL, lg)
		if err != nil {
			return errors.Wrap(err, "create amqp notifier")
		}
		defer amqpNotifier.Close() //nolint:errcheck
		notifier = amqpNotifier
	}

	// Abandoned cart reaper shares the sweep interval.
	go func() {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n, err := cartRepo.ReapExpired(ctx, now); err != nil {
					lg.Warn("Cart reap failed", zap.Error(err))
				} else if n > 0 {
					lg.Info("Abandoned expired carts", zap.Int("count", n))
				}
			}
		}
	}()

	// HTTP handlers: health endpoints + the API mux on one server.
	h := handler.NewHandler(cartSvc, processor, orderRepo, notifier)
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", h.Routes())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(
			otelhttp.NewHandler(mux, "checkout-api",
				otelhttp.WithTracerProvider(m.TracerProvider()),
				otelhttp.WithMeterProvider(m.MeterProvider()),
			),
			httpmiddleware.Recovery(),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
