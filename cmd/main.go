package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	c "github.com/fjod/go_cart/shopping-cart/internal/cache"
	"github.com/fjod/go_cart/shopping-cart/internal/config"
	h "github.com/fjod/go_cart/shopping-cart/internal/http"
	"github.com/fjod/go_cart/shopping-cart/internal/observability"
	"github.com/fjod/go_cart/shopping-cart/internal/publisher"
	"github.com/fjod/go_cart/shopping-cart/internal/repository"
	s "github.com/fjod/go_cart/shopping-cart/internal/service"
	"github.com/fjod/go_cart/shopping-cart/internal/validator"
	"github.com/fjod/go_cart/shopping-cart/pkg/circuitbreaker"
	"github.com/fjod/go_cart/shopping-cart/pkg/logger"
	"github.com/fjod/go_cart/shopping-cart/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()
	zap.ReplaceGlobals(zl)

	if err := run(cfg, zl); err != nil {
		zl.Fatal("shopping-cart stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx := context.Background()
	zl.Info("shopping-cart starting...", zap.String("store", cfg.CartStore))

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTELEndpoint)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			zl.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewServerMetrics(reg)

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close(context.Background())
	zl.Info("Connected to cart store", zap.String("store", cfg.CartStore))

	checks := map[string]h.HealthCheck{
		"storage": func(ctx context.Context) error { return repository.Ping(ctx, repo) },
	}

	var cartCache c.CartCache = c.NopCache{}
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		rc := c.NewRedisCache(redisClient)
		defer rc.Close()
		cartCache = rc
		checks["cache"] = rc.Ping
		zl.Info("Redis ping succeeded", zap.String("addr", cfg.RedisAddr))
	} else {
		zl.Info("Redis cache disabled")
	}

	pub := publisher.NewKafkaPublisher(cfg.OrderTopic, cfg.KafkaBrokers...)
	defer pub.Close()

	remote := &http.Client{
		Timeout:   cfg.RemoteCallTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	v := validator.New(validator.Config{
		UserServiceURL:    cfg.UserServiceURL,
		ProductServiceURL: cfg.ProductServiceURL,
		Breaker: circuitbreaker.Config{
			FailureThreshold:    cfg.BreakerFailureThreshold,
			OpenTimeout:         cfg.BreakerOpenTimeout,
			HalfOpenMaxRequests: cfg.BreakerHalfOpenRequests,
			Interval:            cfg.BreakerInterval,
		},
	}, remote, zl, func(name string, _, to circuitbreaker.State) {
		m.SetBreakerState(name, int(to))
	})
	for name, state := range v.BreakerStates() {
		m.SetBreakerState(name, int(state))
	}

	service := s.NewCartService(repo, cartCache, v, pub, zl, s.WithMetrics(m))
	handler := h.NewCartHandler(service, cfg.RequestTimeout, cfg.MaxRequestBodySize, zl)
	router := h.NewRouter(handler, m, zl, h.RouterConfig{
		RequestTimeout: cfg.RequestTimeout,
		Checks:         checks,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		zl.Info("Shopping cart listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	zl.Info("Shutting down shopping cart...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	zl.Info("Shopping cart stopped")
	return nil
}

func openRepository(ctx context.Context, cfg *config.Config) (repository.CartLineRepository, error) {
	switch cfg.CartStore {
	case config.StorePostgres:
		repo, err := repository.NewPostgresRepository(&repository.Credentials{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			DBName:   cfg.DBName,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := repo.RunMigrations(); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		return repo, nil

	case config.StoreSQLite:
		repo, err := repository.NewSQLiteRepository(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := repo.RunMigrations(); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		return repo, nil

	default:
		db, err := repository.ConnectMongoDB(ctx, repository.MongoSettings{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDBName,
			AppName:  observability.ServiceName,
		})
		if err != nil {
			return nil, err
		}
		repo := repository.NewMongoRepository(db)
		if err := repository.EnsureIndexes(ctx, repo); err != nil {
			return nil, err
		}
		return repo, nil
	}
}
