package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/VictorEZCodes/clothing-shop/internal/config"
	"github.com/VictorEZCodes/clothing-shop/internal/event"
	handler "github.com/VictorEZCodes/clothing-shop/internal/handler/http"
	"github.com/VictorEZCodes/clothing-shop/internal/pricing"
	"github.com/VictorEZCodes/clothing-shop/internal/provider/exchangerate"
	"github.com/VictorEZCodes/clothing-shop/internal/provider/payment"
	mockpay "github.com/VictorEZCodes/clothing-shop/internal/provider/payment/mock"
	"github.com/VictorEZCodes/clothing-shop/internal/provider/payment/paystack"
	"github.com/VictorEZCodes/clothing-shop/internal/repository/postgres"
	redisrepo "github.com/VictorEZCodes/clothing-shop/internal/repository/redis"
	"github.com/VictorEZCodes/clothing-shop/internal/sender"
	mocksender "github.com/VictorEZCodes/clothing-shop/internal/sender/mock"
	smtpsender "github.com/VictorEZCodes/clothing-shop/internal/sender/smtp"
	"github.com/VictorEZCodes/clothing-shop/internal/service"
	"github.com/VictorEZCodes/clothing-shop/migrations"
	"github.com/VictorEZCodes/clothing-shop/pkg/database"
	apperrors "github.com/VictorEZCodes/clothing-shop/pkg/errors"
	"github.com/VictorEZCodes/clothing-shop/pkg/health"
	"github.com/VictorEZCodes/clothing-shop/pkg/httpclient"
	pkgkafka "github.com/VictorEZCodes/clothing-shop/pkg/kafka"
	"github.com/VictorEZCodes/clothing-shop/pkg/middleware"
	"github.com/VictorEZCodes/clothing-shop/pkg/tracing"
)

// App wires together all dependencies and runs the storefront order service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	components     *components
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// Pinger is a database handle that can report its own liveness.
type Pinger interface {
	database.DBTX
	Ping(ctx context.Context) error
}

// components is the service graph built on top of connected infrastructure.
type components struct {
	router     http.Handler
	rates      *pricing.RateBook
	dispatcher *service.Dispatcher
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing())
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	if cfg.SlowQueryMS > 0 {
		database.SetSlowQueryLogging(cfg.SlowQueryThreshold(), logger)
	}

	// Initialize PostgreSQL connection pool.
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, config.ServiceName); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Initialize Redis client.
	redisClient, err := database.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("addr", cfg.RedisAddr))

	// Events go to Kafka when enabled and are otherwise only logged.
	var (
		producer   *pkgkafka.Producer
		publisher  event.Publisher
		kafkaCheck health.Checker
	)
	if cfg.KafkaEnabled {
		producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = producer
		kafkaCheck = producer.Ping
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		publisher = event.NewDiscardPublisher(logger)
		logger.Info("kafka disabled, domain events are logged only")
	}

	comps, err := buildComponents(cfg, logger, pool, redisClient, publisher, kafkaCheck)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, err
	}
	if err := prometheus.Register(comps.rates); err != nil {
		logger.Warn("exchange rate metrics not registered", slog.String("error", err.Error()))
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           comps.router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		producer:       producer,
		components:     comps,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// buildComponents assembles repositories, providers, services and the router.
// kafkaCheck may be nil when the event bus is disabled.
func buildComponents(
	cfg *config.Config,
	logger *slog.Logger,
	db Pinger,
	redisClient *redis.Client,
	publisher event.Publisher,
	kafkaCheck health.Checker,
) (*components, error) {
	eventProducer := event.NewProducer(publisher, logger)

	orderRepo := postgres.NewOrderRepository(db)
	catalog := postgres.NewCatalogRepository(db)
	cartRepo := redisrepo.NewCartRepository(redisClient, cfg.CartTTL())
	checkoutRepo := redisrepo.NewCheckoutRepository(redisClient, cfg.CheckoutTTL())
	sentLog := redisrepo.NewSentLog(redisClient, cfg.NotifyDedupeTTL())

	feed := exchangerate.New(cfg.RateFeedURL, newUpstreamClient("exchange-rate", logger))
	rates := pricing.NewRateBook(feed, cfg.RateSourceCurrency, cfg.SettlementCurrency, logger)

	gateway, err := newGateway(cfg, logger)
	if err != nil {
		return nil, err
	}
	snd, err := newSender(cfg, logger)
	if err != nil {
		return nil, err
	}

	dispatcher := service.NewDispatcher(service.DispatcherConfig{
		From:          cfg.EmailFrom,
		OperatorEmail: cfg.AdminEmail,
	}, snd, sentLog, catalog, logger)

	orders := service.NewOrderService(orderRepo, catalog, eventProducer, dispatcher, cfg.SettlementCurrency, logger)
	carts := service.NewCartService(cartRepo, catalog, logger)
	checkout := service.NewCheckoutService(carts, orders, catalog, checkoutRepo, rates, gateway,
		eventProducer, cfg.CheckoutTTL(), logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", db.Ping)
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.RegisterNonCritical("exchange_rate", rates.Check)
	if kafkaCheck != nil {
		healthHandler.RegisterNonCritical("kafka", kafkaCheck)
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins

	router := handler.NewRouter(
		handler.Services{Orders: orders, Carts: carts, Checkout: checkout},
		healthHandler,
		handler.RouterConfig{
			ServiceName:       config.ServiceName,
			JWTSecret:         []byte(cfg.JWTSecret),
			CORS:              corsCfg,
			RateLimit:         cfg.RateLimit(),
			CheckoutRateLimit: cfg.CheckoutRateLimit(),
		},
		logger,
	)

	logger.Info("services initialized",
		slog.String("payment_provider", gateway.Name()),
		slog.String("notify_sender", snd.Name()),
		slog.String("settlement_currency", rates.Quote()),
	)

	return &components{router: router, rates: rates, dispatcher: dispatcher}, nil
}

func newUpstreamClient(name string, logger *slog.Logger) *httpclient.CircuitBreakerClient {
	return newBreaker(httpclient.New(httpclient.DefaultConfig()), httpclient.DefaultCircuitBreakerConfig(name), logger)
}

func newBreaker(client *httpclient.Client, cbCfg httpclient.CircuitBreakerConfig, logger *slog.Logger) *httpclient.CircuitBreakerClient {
	return httpclient.NewCircuitBreakerClient(client, cbCfg, logger).
		WithFallback(circuitOpenFallback(cbCfg.Name))
}

// circuitOpenFallback answers for an open breaker with a 503 naming the upstream.
func circuitOpenFallback(name string) httpclient.FallbackFunc {
	return func(_ context.Context, err error) (*http.Response, error) {
		return nil, apperrors.Wrap(
			apperrors.ServiceUnavailable(name+" is temporarily unavailable; please retry shortly"),
			fmt.Sprintf("%s: %v", name, err),
		)
	}
}

func newGateway(cfg *config.Config, logger *slog.Logger) (payment.Gateway, error) {
	switch cfg.PaymentProvider {
	case config.PaymentProviderPaystack:
		return paystack.New(paystack.Config{
			BaseURL:     cfg.PaystackBaseURL,
			SecretKey:   cfg.PaystackSecretKey,
			CallbackURL: cfg.PaystackCallbackURL,
		}, newUpstreamClient("paystack", logger)), nil
	case config.PaymentProviderMock:
		return mockpay.NewGateway(), nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.PaymentProvider)
	}
}

func newSender(cfg *config.Config, logger *slog.Logger) (sender.Sender, error) {
	switch cfg.NotifySender {
	case config.SenderSMTP:
		return smtpsender.New(smtpsender.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
		}), nil
	case config.SenderMock:
		return mocksender.NewMockSender(logger), nil
	default:
		return nil, fmt.Errorf("unknown notification sender %q", cfg.NotifySender)
	}
}

// Run starts the HTTP server and the exchange rate refresher and blocks
// until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.components.rates.Run(gctx, a.cfg.RateRefreshInterval())
	})

	g.Go(func() error {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutdown signal received")
		return a.Shutdown()
	})

	return g.Wait()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Notification dispatcher (finish sends started by drained requests)
// 3. Tracer (flush pending spans)
// 4. Kafka producer
// 5. Redis client and PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (5s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Let queued notifications finish (10s budget).
	notifyCtx, notifyCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer notifyCancel()
	if err := a.components.dispatcher.Wait(notifyCtx); err != nil {
		a.logger.Warn("notifications still pending at shutdown", slog.String("error", err.Error()))
	}

	// 3. Flush pending spans.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 4. Close Kafka producer.
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 5. Close stores.
	if err := a.redis.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
