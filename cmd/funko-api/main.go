package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/funko-store/funko-api/internal/app"
	"github.com/funko-store/funko-api/internal/auth"
	"github.com/funko-store/funko-api/internal/categories"
	"github.com/funko-store/funko-api/internal/funkos"
	"github.com/funko-store/funko-api/internal/notifications"
	"github.com/funko-store/funko-api/internal/observability"
	"github.com/funko-store/funko-api/internal/orders"
	"github.com/funko-store/funko-api/internal/platform/cache"
	"github.com/funko-store/funko-api/internal/platform/db"
	"github.com/funko-store/funko-api/internal/platform/docstore"
	"github.com/funko-store/funko-api/internal/platform/tracing"
	"github.com/funko-store/funko-api/internal/storage"
	"github.com/funko-store/funko-api/internal/users"
	"github.com/funko-store/funko-api/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	shutdownTracing, err := tracing.Init(ctx, cfg.OTELCollector, "funko-api")
	if err != nil {
		logger.Warn("init tracing", slog.Any("error", err))
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown", slog.Any("error", err))
		}
	}()

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()
	if err := db.EnsureSchema(ctx, dbpool); err != nil {
		logger.Error("ensure schema", slog.Any("error", err))
		os.Exit(1)
	}

	mongoDB, err := docstore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		logger.Error("connect mongo", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := docstore.Disconnect(context.Background(), mongoDB); err != nil {
			logger.Warn("mongo disconnect", slog.Any("error", err))
		}
	}()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	cacheMetrics, err := cache.NewMetrics(metrics.Registerer())
	if err != nil {
		logger.Error("register cache metrics", slog.Any("error", err))
		os.Exit(1)
	}
	store := cache.NewStore(redisClient, cfg.CacheTTL).WithMetrics(cacheMetrics)

	files, err := storage.NewStore(cfg.UploadsDir, cfg.UploadMaxBytes, logger)
	if err != nil {
		logger.Error("init storage", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobsClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL)
	authz := auth.Middleware{Tokens: tokens, Logger: logger}

	categoryService := categories.NewService(categories.NewRepository(dbpool), store, logger)
	funkoService := funkos.NewService(funkos.NewRepository(dbpool), store, categoryService, jobsClient, jobsClient, logger)

	orderRepo := orders.NewRepository(mongoDB)
	if err := orderRepo.EnsureIndexes(ctx); err != nil {
		logger.Warn("ensure order indexes", slog.Any("error", err))
	}
	orderService := orders.NewService(orderRepo, store, funkoService, logger)

	userService := users.NewService(users.NewRepository(dbpool), tokens, logger)
	if cfg.BootstrapAdmin() {
		if err := userService.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			logger.Error("bootstrap admin", slog.Any("error", err))
			os.Exit(1)
		}
	}

	hub := notifications.NewHub(logger, metrics)
	go func() {
		if err := hub.Run(ctx, redisClient, notifications.Channel); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("notifications hub", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Metrics:           metrics,
		Auth:              authz,
		CategoriesHandler: categories.NewHandler(logger, categoryService, authz),
		FunkosHandler:     funkos.NewHandler(logger, funkoService, files, authz, cfg.APIPrefix()),
		OrdersHandler:     orders.NewHandler(logger, orderService, authz),
		UsersHandler:      users.NewHandler(logger, userService, orderService, authz),
		StorageHandler:    storage.NewHandler(logger, files, authz, cfg.APIPrefix()),
		JobHandler:        jobs.NewHandler(inspector, logger),
		Notifications:     hub,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("prefix", cfg.APIPrefix()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
