package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	appOrder "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/application/order"
	appPayment "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/application/payment"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/config"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/catalog"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/dispense"
	domorder "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/order"
	dompay "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/payment"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/infrastructure/catalogfile"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/infrastructure/gateway"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/infrastructure/hardware"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/infrastructure/id"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/infrastructure/kafka"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/infrastructure/memory"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/infrastructure/observability/oteltrace"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/infrastructure/observability/telemetry"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/infrastructure/outbox"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/infrastructure/redisstore"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/infrastructure/scheduler"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/infrastructure/sqlstore"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/pkg/logging"
	httppresentation "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/presentation/http"
	workerpresentation "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/presentation/worker"
)

// App is the assembled kiosk backend: HTTP surface, event bus, workers and
// the dispense completion scheduler, wired for the configured drivers.
type App struct {
	cfg         config.Config
	log         *zap.Logger // system logger for lifecycle lines
	server      *http.Server
	handler     http.Handler
	bus         *outbox.Bus
	scheduler   *scheduler.TimerScheduler
	maskedKeyID string
	closers     []closer
}

type closer struct {
	name string
	fn   func() error
}

// New builds the app. base may be nil, in which case logging is discarded.
func New(ctx context.Context, cfg config.Config, base *zap.Logger) (_ *App, err error) {
	if base == nil {
		base = zap.NewNop()
	}
	a := &App{
		cfg: cfg,
		log: logging.WithTrace(base, logging.SystemTraceID, logging.SystemSpanID),
	}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	oteltrace.InstallPropagator()
	tel := telemetry.New(telemetry.Options{
		Service:    cfg.App.Name,
		Namespace:  cfg.Metrics.Namespace,
		Logger:     base,
		Registerer: reg,
	})
	logger := tel.Logger()

	cat, err := LoadCatalog(cfg)
	if err != nil {
		return nil, err
	}

	repo, err := a.openRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}

	gw, masked := newGateway(cfg, logger)
	a.maskedKeyID = masked

	dispenser, err := a.openDispenser(cfg, logger)
	if err != nil {
		return nil, err
	}

	a.bus = outbox.NewBus(logger, outbox.Options{
		QueueSize:   cfg.Outbox.QueueSize,
		Concurrency: cfg.Outbox.Concurrency,
	})
	a.scheduler = scheduler.New(logger)

	auth := appPayment.NewAuthenticator(cfg.Payment.WebhookSecret)
	createOrder := appOrder.NewCreateOrderUseCase(cat, repo, gw, id.NewUUIDGenerator(), a.bus, appOrder.SystemClock(),
		appOrder.CreateOrderConfig{
			LinkExpiry:     cfg.Order.LinkExpiry,
			GatewayTimeout: cfg.Order.GatewayTimeout,
		}, tel)
	dispatch := appOrder.NewDispatchUseCase(repo, dispenser, a.scheduler, a.bus,
		dispense.Timing{PerUnit: cfg.Dispense.PerUnit, Overhead: cfg.Dispense.Overhead}, tel)
	confirm := appPayment.NewConfirmPaymentUseCase(repo, a.bus, tel)

	appOrder.NewWorker(workerpresentation.NewSubscriber(a.bus, logger, "order-worker"), tel).Start()

	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(kafka.Config{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.Topic,
			ClientID: cfg.Kafka.ClientID,
			Timeout:  cfg.Kafka.Timeout,
		})
		if err != nil {
			return nil, err
		}
		fwd := kafka.NewForwarder(producer, cfg.Kafka.Topic, cfg.App.Name, logger)
		fwd.Start(workerpresentation.NewSubscriber(a.bus, logger, "kafka-forwarder"))
		a.closers = append(a.closers, closer{name: "kafka_forwarder", fn: fwd.Close})
	}

	opts := httppresentation.Options{
		CORSOrigins:     cfg.HTTP.CORSOrigins,
		MaxWebhookBytes: cfg.HTTP.MaxWebhookBytes,
		Metrics:         promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	}
	if cfg.Payment.Gateway == config.GatewaySandbox {
		opts.SandboxSigner = auth
	}
	a.handler = httppresentation.NewHandler(httppresentation.Services{
		CreateOrder:  createOrder,
		Status:       appOrder.NewGetStatusUseCase(repo, tel),
		Dispatch:     dispatch,
		Notification: appPayment.NewHandleNotificationUseCase(auth, confirm, tel),
		Catalog:      cat,
	}, opts, tel).Router()

	a.server = &http.Server{
		Addr:         cfg.App.HTTPAddr,
		Handler:      a.handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}
	return a, nil
}

func (a *App) Handler() http.Handler { return a.handler }

// Run serves until ctx is canceled, then shuts everything down in order:
// HTTP server, pending completions, event bus, external clients.
func (a *App) Run(ctx context.Context) error {
	a.bus.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info("http_server_start",
			zap.String("addr", a.server.Addr),
			zap.String("webhook_path", httppresentation.RouteWebhook),
			zap.String("payment_gateway", a.cfg.Payment.Gateway),
			zap.String("payment_key_id", a.maskedKeyID),
			zap.String("store", a.cfg.Store.Driver),
			zap.String("dispenser", a.cfg.Dispense.Driver),
		)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})
	return g.Wait()
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.App.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		a.log.Error("http_server_shutdown_error", zap.Error(err))
		errs = append(errs, err)
	} else {
		a.log.Info("http_server_stopped")
	}

	if dropped := a.scheduler.Stop(ctx); len(dropped) > 0 {
		a.log.Warn("dispense_completions_lost",
			zap.Int("count", len(dropped)),
			zap.Strings("order_ids", dropped),
		)
	}
	a.bus.Stop(ctx)
	a.close()
	return errors.Join(errs...)
}

// close releases external clients in reverse order of creation.
func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.log.Warn("close_failed", zap.String("resource", c.name), zap.Error(err))
		}
	}
	a.closers = nil
}

// LoadCatalog reads the configured catalog file, or the built-in lineup when none is set.
func LoadCatalog(cfg config.Config) (*catalog.Catalog, error) {
	opts := catalog.Options{
		Currency:    cfg.Catalog.Currency,
		Exponent:    cfg.Catalog.Exponent,
		MaxQuantity: cfg.Catalog.MaxQuantity,
	}
	if cfg.Catalog.Path == "" {
		return catalog.New(opts, catalog.Default().Products()...)
	}
	c, err := catalogfile.Load(cfg.Catalog.Path, opts)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", cfg.Catalog.Path, err)
	}
	return c, nil
}

// SQLOptions maps the sql config section onto the store's options.
func SQLOptions(cfg config.Config) sqlstore.Options {
	return sqlstore.Options{
		Driver:          cfg.SQL.Driver,
		DSN:             cfg.SQL.DSN,
		MaxOpenConns:    cfg.SQL.MaxOpenConns,
		MaxIdleConns:    cfg.SQL.MaxIdleConns,
		ConnMaxLifetime: cfg.SQL.ConnMaxLifetime,
	}
}

func (a *App) openRepository(ctx context.Context, cfg config.Config) (domorder.Repository, error) {
	switch cfg.Store.Driver {
	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
		}
		a.closers = append(a.closers, closer{name: "redis", fn: rdb.Close})
		return redisstore.NewOrderRepository(rdb, redisstore.Options{
			Prefix: cfg.Redis.Prefix,
			TTL:    cfg.Redis.TTL,
		}), nil
	case config.StoreSQL:
		opts := SQLOptions(cfg)
		if cfg.SQL.AutoMigrate {
			version, err := sqlstore.Migrate(opts)
			if err != nil {
				return nil, err
			}
			a.log.Info("sql_schema_ready", zap.String("driver", opts.Driver), zap.Uint("version", version))
		}
		db, err := sqlstore.Open(ctx, opts)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, closer{name: "sql", fn: db.Close})
		return sqlstore.NewOrderRepository(db), nil
	default:
		return memory.NewOrderRepository(), nil
	}
}

func newGateway(cfg config.Config, logger observability.Logger) (dompay.Gateway, string) {
	if cfg.Payment.Gateway == config.GatewayRazorpay {
		rp := gateway.NewRazorpay(gateway.RazorpayConfig{
			BaseURL:   cfg.Payment.BaseURL,
			KeyID:     cfg.Payment.KeyID,
			KeySecret: cfg.Payment.KeySecret,
			QRSize:    cfg.Payment.QRSize,
			Timeout:   cfg.Payment.Timeout,
		}, nil, logger)
		return rp, rp.MaskedKeyID()
	}
	return gateway.NewSandbox(cfg.Payment.SandboxURL, cfg.Payment.QRSize, logger), config.GatewaySandbox
}

func (a *App) openDispenser(cfg config.Config, logger observability.Logger) (dispense.Dispenser, error) {
	if cfg.Dispense.Driver != config.DispenserAMQP {
		return hardware.NewSimulator(logger), nil
	}
	d, err := hardware.DialAMQP(hardware.AMQPConfig{
		URL:        cfg.AMQP.URL,
		Exchange:   cfg.AMQP.Exchange,
		RoutingKey: cfg.AMQP.RoutingKey,
		TTL:        cfg.AMQP.TTL,
	}, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closer{name: "amqp", fn: d.Close})
	return d, nil
}
