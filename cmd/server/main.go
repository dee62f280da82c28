package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/storefront/backend/internal/application/bridge"
	"github.com/storefront/backend/internal/application/catalogsync"
	"github.com/storefront/backend/internal/domain/integration"
	"github.com/storefront/backend/internal/infrastructure/adminapi"
	"github.com/storefront/backend/internal/infrastructure/adminsync"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/event"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/infrastructure/persistence"
	"github.com/storefront/backend/internal/infrastructure/scheduler"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"github.com/storefront/backend/internal/interfaces/http/handler"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
	"github.com/storefront/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

const streamPath = "/api/v1/stream"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting storefront bridge",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.Bool("push_enabled", cfg.Bridge.PushEnabled),
		zap.Bool("poll_enabled", cfg.Bridge.PollEnabled),
		zap.String("sink_mode", cfg.Bridge.SinkMode),
	)

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(rootCtx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	meterProvider, err := telemetry.NewMeterProvider(rootCtx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	meter := meterProvider.Meter(cfg.Telemetry.ServiceName)
	metrics, err := telemetry.NewBridgeMetrics(telemetry.BridgeMetricsConfig{Meter: meter, Logger: log})
	if err != nil {
		log.Fatal("Failed to initialize bridge metrics", zap.Error(err))
	}

	// Database
	db := openDatabase(cfg, log)
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	// Redis (optional)
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Error closing redis client", zap.Error(err))
			}
		}()
		if err := redisClient.Ping(rootCtx).Err(); err != nil {
			log.Fatal("Failed to connect to redis", zap.String("addr", cfg.Redis.Addr()), zap.Error(err))
		}
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}

	// Outbound sink: the local hub, optionally fronted by the redis relay
	hub := event.NewTopicHub(log,
		event.WithMaxSubscribers(cfg.HTTP.StreamMaxClients),
		event.WithQueueSize(cfg.HTTP.StreamClientQueue),
	)
	var sink integration.EventSink = hub
	if cfg.Bridge.SinkMode == config.SinkModeRedis {
		relay := event.NewRedisTopicRelay(redisClient, hub,
			event.WithRelayChannel(cfg.Redis.Channel),
			event.WithRelayLogger(log),
		)
		sink = relay
		go func() {
			if err := relay.Serve(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Redis relay stopped", zap.Error(err))
			}
		}()
	}

	// Pipeline: codec -> reconciler -> forwarder
	policy, err := bridge.ParsePersistFailurePolicy(cfg.Bridge.PersistFailurePolicy)
	if err != nil {
		log.Fatal("Invalid persist failure policy", zap.Error(err))
	}
	reconcilerCfg := bridge.DefaultReconcilerConfig()
	reconcilerCfg.PersistPolicy = policy
	reconcilerCfg.PersistRetryAttempts = cfg.Bridge.PersistRetryAttempts

	orderRepo := persistence.NewGormOrderRepository(db.DB)
	reconciler, err := bridge.NewOrderStateReconciler(orderRepo, reconcilerCfg, log)
	if err != nil {
		log.Fatal("Failed to create order reconciler", zap.Error(err))
	}
	pipeline := bridge.NewPipeline(
		bridge.NewPayloadCodec(),
		reconciler,
		bridge.NewEventForwarder(sink, log),
		log,
		bridge.WithPipelineMetrics(metrics),
	)

	// Admin REST client, shared by the poll transport and the catalog mirror
	var adminClient *adminapi.Client
	if cfg.Bridge.PollEnabled || cfg.Catalog.Enabled {
		adminClient, err = adminapi.NewClient(adminapi.Config{
			BaseURL:          cfg.Admin.BaseURL,
			Token:            cfg.Admin.Token,
			Timeout:          cfg.Admin.Timeout,
			PageSize:         cfg.Admin.PageSize,
			MaxResponseBytes: cfg.Admin.MaxResponseBytes,
			RateLimit:        cfg.Admin.RateLimit,
			RateBurst:        cfg.Admin.RateBurst,
			BreakerFailures:  cfg.Admin.BreakerFailures,
			BreakerTimeout:   cfg.Admin.BreakerTimeout,
		}, log)
		if err != nil {
			log.Fatal("Failed to create admin API client", zap.Error(err))
		}
	}

	// Exactly one transport feeds the pipeline
	transport, err := adminsync.NewTransport(
		adminsync.TransportSelection{
			PushEnabled: cfg.Bridge.PushEnabled,
			PollEnabled: cfg.Bridge.PollEnabled,
		},
		adminsync.TransportFactories{
			Push: func() (integration.Transport, error) {
				return newPushTransport(cfg, pipeline, metrics, log)
			},
			Poll: func() (integration.Transport, error) {
				return newPollTransport(cfg, adminClient, pipeline, metrics, log)
			},
		},
	)
	if err != nil {
		log.Fatal("Failed to select admin transport", zap.Error(err))
	}
	if err := transport.Start(rootCtx); err != nil {
		log.Fatal("Failed to start admin transport", zap.String("transport", transport.Name()), zap.Error(err))
	}
	log.Info("Admin transport started", zap.String("transport", transport.Name()))

	// Catalog mirror (optional)
	var catalogHandler *handler.CatalogHandler
	var catalogScheduler *scheduler.CatalogSyncScheduler
	if cfg.Catalog.Enabled {
		catalogService := catalogsync.NewService(adminClient, persistence.NewGormCatalogMirrorRepository(db.DB), log,
			catalogsync.WithMetrics(metrics),
		)
		schedCfg := scheduler.DefaultCatalogSyncSchedulerConfig()
		schedCfg.Interval = cfg.Catalog.Interval
		if cfg.Catalog.Timeout > 0 {
			schedCfg.Timeout = cfg.Catalog.Timeout
		}
		catalogScheduler, err = scheduler.NewCatalogSyncScheduler(schedCfg, catalogService, log, metrics)
		if err != nil {
			log.Fatal("Failed to create catalog sync scheduler", zap.Error(err))
		}
		if err := catalogScheduler.Start(rootCtx); err != nil {
			log.Fatal("Failed to start catalog sync scheduler", zap.Error(err))
		}
		catalogHandler = handler.NewCatalogHandler(catalogScheduler, catalogService)
		log.Info("Catalog sync scheduler started", zap.Duration("interval", schedCfg.Interval))
	} else {
		catalogHandler = handler.NewCatalogHandler(nil, nil)
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins

	engineCfg := router.EngineConfig{
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
			SkipPaths:   []string{"/health", streamPath},
		},
		CORS: corsConfig,
	}
	if meterProvider.IsEnabled() {
		engineCfg.Meter = meter
	}
	engine := router.NewEngine(engineCfg, log)

	health := handler.NewHealthHandler(log).AddCheck("database", db.Ping)
	if redisClient != nil {
		health.AddCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	router.RegisterBridgeRoutes(engine, router.Handlers{
		Health: health,
		Stream: handler.NewStreamHandler(hub,
			handler.WithStreamLogger(log),
			handler.WithStreamHeartbeat(cfg.HTTP.StreamHeartbeat),
		),
		Bridge:  handler.NewBridgeHandler(transport, hub, cfg.Bridge.SinkMode),
		Catalog: catalogHandler,
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}
	// Closing the hub ends every open stream so Shutdown does not wait on them
	srv.RegisterOnShutdown(hub.Close)

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownTimeout := cfg.HTTP.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := transport.Stop(ctx); err != nil {
		log.Error("Error stopping admin transport", zap.Error(err))
	}
	if catalogScheduler != nil {
		if err := catalogScheduler.Stop(ctx); err != nil {
			log.Error("Error stopping catalog sync scheduler", zap.Error(err))
		}
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	cancelRoot()

	log.Info("Server exited gracefully")
}

// openDatabase connects to the configured database, installs the tracing
// plugin and, for sqlite, creates the bridge schema.
func openDatabase(cfg *config.Config, log *zap.Logger) *persistence.Database {
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
	)
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithGormLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}

	tracingCfg := telemetry.DefaultDBTracingConfig()
	tracingCfg.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled
	tracingCfg.LogFullSQL = cfg.Telemetry.DBLogFullSQL
	if cfg.Telemetry.DBSlowQueryThresh > 0 {
		tracingCfg.SlowQueryThresh = cfg.Telemetry.DBSlowQueryThresh
	}
	if cfg.Database.DBName != "" {
		tracingCfg.DBName = cfg.Database.DBName
	}
	if err := telemetry.NewDBTracingPlugin(tracingCfg, log).Register(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	if cfg.Database.Driver == "sqlite" {
		if err := persistence.AutoMigrate(db.DB); err != nil {
			log.Fatal("Failed to create sqlite schema", zap.Error(err))
		}
	}

	log.Info("Database connected successfully", zap.String("driver", cfg.Database.Driver))
	return db
}

func newPushTransport(cfg *config.Config, pipeline *bridge.Pipeline, metrics *telemetry.BridgeMetrics, log *zap.Logger) (integration.Transport, error) {
	policy, err := adminsync.NewReconnectPolicy(cfg.Bridge.BackoffBase, cfg.Bridge.BackoffCap)
	if err != nil {
		return nil, err
	}
	dialer, err := adminsync.NewWebSocketDialer(adminsync.WebSocketConfig{
		URL:   cfg.Bridge.SubscriptionURL,
		Token: cfg.Admin.Token,
	})
	if err != nil {
		return nil, err
	}
	supervisor, err := adminsync.NewConnectionSupervisor(
		adminsync.SupervisorConfig{
			OrderTopic:    cfg.Bridge.OrderTopic,
			DeliveryTopic: cfg.Bridge.DeliveryTopic,
			Policy:        policy,
		},
		dialer,
		func(ctx context.Context, raw []byte) {
			pipeline.HandleRaw(ctx, bridge.SourcePush, raw)
		},
		log,
		adminsync.WithSupervisorMetrics(metrics),
	)
	if err != nil {
		return nil, err
	}
	return supervisor, nil
}

func newPollTransport(cfg *config.Config, client *adminapi.Client, pipeline *bridge.Pipeline, metrics *telemetry.BridgeMetrics, log *zap.Logger) (integration.Transport, error) {
	pollCfg := scheduler.DefaultPollingSchedulerConfig()
	pollCfg.Interval = cfg.Bridge.PollInterval
	if len(cfg.Bridge.PolledStatuses) > 0 {
		pollCfg.Statuses = cfg.Bridge.PolledStatuses
	}
	poller, err := scheduler.NewPollingScheduler(pollCfg, client,
		func(ctx context.Context, env integration.RemoteEnvelope) {
			pipeline.Handle(ctx, bridge.SourcePoll, env)
		},
		log,
		metrics,
	)
	if err != nil {
		return nil, err
	}
	return poller, nil
}
