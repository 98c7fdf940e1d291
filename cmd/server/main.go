package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/maneesh/mediadrop/internal/config"
	"github.com/maneesh/mediadrop/internal/controller"
	"github.com/maneesh/mediadrop/internal/handlers"
	"github.com/maneesh/mediadrop/internal/metrics"
	"github.com/maneesh/mediadrop/internal/purge"
	"github.com/maneesh/mediadrop/internal/session"
	"github.com/maneesh/mediadrop/internal/storage"
	"github.com/maneesh/mediadrop/internal/telegram"
	"github.com/maneesh/mediadrop/internal/tracing"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("service failed", "error", err)
		os.Exit(1)
	}
	logger.Info("service exited")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting mediadrop bot",
		"service", cfg.ServiceName,
		"port", cfg.ServicePort,
		"store", cfg.StoreBackend,
		"transport", cfg.TransportMode,
		"purge_delay", cfg.PurgeDelay,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracing.InitTracer(cfg.ServiceName, cfg.JaegerEndpoint, cfg.TraceSampleRatio)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			logger.Warn("error shutting down tracer", "error", err)
		}
	}()

	store, closeStore, err := openBundleStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	client, err := telegram.NewClient(telegram.ClientConfig{
		Token:    cfg.BotToken,
		Timeout:  cfg.TelegramTimeout,
		LinkHost: cfg.LinkHost,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	logger.Info("connected to telegram", "bot", client.Username())

	m := metrics.New()
	scheduler := purge.NewScheduler(client,
		purge.WithJobTimeout(cfg.JobTimeout),
		purge.WithLogger(logger),
		purge.WithMetrics(m),
	)
	ctl := controller.New(session.NewStore(), store, scheduler,
		controller.WithPurgeDelay(cfg.PurgeDelay),
		controller.WithLogger(logger),
		controller.WithMetrics(m),
	)
	dispatcher := telegram.NewDispatcher(ctl, client,
		telegram.WithLinkHost(cfg.LinkHost),
		telegram.WithChannelURL(cfg.ChannelURL),
		telegram.WithDispatcherLogger(logger),
	)

	router := mux.NewRouter()
	router.HandleFunc("/health", handlers.Health).Methods("GET")
	router.Handle("/metrics", metrics.Handler(metrics.NewRegistry(m))).Methods("GET")
	router.Handle("/bundles/{token}",
		otelhttp.NewHandler(handlers.NewBundleHandler(store, logger), "GET /bundles/{token}"),
	).Methods("GET")
	if cfg.TransportMode == config.TransportWebhook {
		router.Handle("/telegram/{secret}",
			otelhttp.NewHandler(handlers.NewWebhookHandler(cfg.WebhookSecret, dispatcher, logger), "POST /telegram"),
		).Methods("POST")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.ServicePort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", "port", cfg.ServicePort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server forced to shutdown", "error", err)
		}
		return nil
	})

	switch cfg.TransportMode {
	case config.TransportWebhook:
		if err := client.SetWebhook(cfg.WebhookEndpoint()); err != nil {
			stop()
			_ = g.Wait()
			return err
		}
	default:
		if err := client.RemoveWebhook(); err != nil {
			logger.Warn("could not clear webhook before polling", "error", err)
		}
		poller := telegram.NewPoller(client, dispatcher, logger)
		g.Go(func() error {
			return poller.Run(gctx)
		})
	}

	runErr := g.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := scheduler.Stop(stopCtx); err != nil {
		logger.Warn("purge jobs still running at exit", "error", err)
	}
	return runErr
}

// openBundleStore opens the configured backend, wrapped in the Redis cache
// when enabled. The returned func closes whatever was opened.
func openBundleStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.BundleStore, func(), error) {
	var closers []func() error
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("error closing store", "error", err)
			}
		}
	}

	var store storage.BundleStore
	switch cfg.StoreBackend {
	case config.BackendMySQL:
		logger.Info("connecting to TiDB", "host", cfg.TiDBHost, "database", cfg.TiDBDatabase)
		tidb, err := storage.NewTiDBBundleStore(cfg.GetDSN())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize TiDB store: %w", err)
		}
		closers = append(closers, tidb.Close)
		if err := tidb.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, nil, err
		}
		store = tidb
	case config.BackendMinio:
		logger.Info("connecting to MinIO", "endpoint", cfg.MinIOEndpoint, "bucket", cfg.MinIOBucketName)
		mc, err := storage.NewMinioBundleStore(ctx,
			cfg.MinIOEndpoint,
			cfg.MinIOAccessKey,
			cfg.MinIOSecretKey,
			cfg.MinIOBucketName,
			cfg.MinIOUseSSL,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize MinIO store: %w", err)
		}
		store = mc
	default:
		logger.Warn("using in-memory bundle store, bundles are lost on restart")
		store = storage.NewMemoryBundleStore()
	}

	if cfg.RedisEnabled {
		logger.Info("connecting to Redis", "addr", cfg.GetRedisAddr())
		rdb, err := storage.NewRedisClient(ctx, cfg.GetRedisAddr(), cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to initialize Redis cache: %w", err)
		}
		closers = append(closers, rdb.Close)
		store = storage.NewCachedBundleStore(store, rdb,
			storage.WithCacheTTL(cfg.CacheTTL),
			storage.WithCacheLogger(logger),
		)
	}

	return store, closeAll, nil
}
