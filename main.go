package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"event-planner/api"
	"event-planner/apiclient"
	"event-planner/config"
	"event-planner/console"
	"event-planner/notify"
	"event-planner/reconcile"
	"event-planner/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := log.New()
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&log.JSONFormatter{})
	}

	// Spans are not exported; the provider gives mutation log entries
	// trace and span ids.
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	otel.SetTracerProvider(tp)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var remote apiclient.Remote = apiclient.New(apiclient.Config{
		BaseURL:   cfg.APIBaseURL,
		Token:     cfg.APIToken,
		Timeout:   cfg.APITimeout,
		RateLimit: cfg.APIRateLimit,
		Burst:     cfg.APIBurst,
	}, logger)

	var (
		cache   *storage.Cache
		deduper api.Deduper
	)
	if opts := cfg.RedisOptions(); opts != nil {
		rc := redis.NewClient(opts)
		defer rc.Close()
		cache = storage.NewCache(remote, rc, cfg.CacheTTL, cfg.CacheNamespace, logger)
		remote = cache
		deduper = storage.NewDeduper(rc, cfg.IdempotencyTTL, cfg.CacheNamespace)
	} else {
		logger.Warn("REDIS_CONNECTION_STRING not set, API responses are not cached")
	}

	dispatcher := reconcile.NewDispatcher(reconcile.DispatcherConfig{
		Workers:        cfg.SyncWorkers,
		Buffer:         cfg.SyncBuffer,
		HandoffTimeout: cfg.SyncHandoffTimeout,
	}, logger)
	feed := notify.NewFeed(cfg.ToastHistory)
	syncer := reconcile.NewSyncer(dispatcher, notify.Fanout{notify.LogSink{Logger: logger}, feed}, logger)

	session := console.NewSession(apiclient.NewService(remote), console.Deps{
		Syncer: syncer,
		Prompt: notify.ContextPrompt{},
		Logger: logger,
	})

	if cache != nil {
		go cache.Subscribe(ctx, func(inv storage.Invalidation) {
			logger.WithFields(log.Fields{"method": inv.Method, "path": inv.Path}).Debug("remote change, reloading session")
			_ = session.Reload(ctx)
		})
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderContentEncoding, "Idempotency-Key"},
	}))
	api.Register(e, session, feed, deduper, logger)

	go func() {
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server: %v", err)
		}
	}()
	logger.Infof("console listening on %s", cfg.ListenAddr)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
	dispatcher.Close()
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("tracer shutdown: %v", err)
	}
}
