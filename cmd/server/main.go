package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/hijabworld/config"
	"github.com/d60-Lab/hijabworld/internal/api"
	"github.com/d60-Lab/hijabworld/internal/api/handler"
	"github.com/d60-Lab/hijabworld/internal/api/middleware"
	"github.com/d60-Lab/hijabworld/internal/cache"
	"github.com/d60-Lab/hijabworld/internal/events"
	"github.com/d60-Lab/hijabworld/internal/metrics"
	"github.com/d60-Lab/hijabworld/internal/model"
	"github.com/d60-Lab/hijabworld/internal/payment"
	"github.com/d60-Lab/hijabworld/internal/repository"
	"github.com/d60-Lab/hijabworld/internal/service"
	"github.com/d60-Lab/hijabworld/pkg/database"
	"github.com/d60-Lab/hijabworld/pkg/logger"
	"github.com/d60-Lab/hijabworld/pkg/tracing"
)

// @title Hijab World API
// @version 1.0
// @description Hijab World 商城订单与支付服务
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	configPath := flag.String("config", "", "配置文件路径（默认 ./config/config.yaml）")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
			SampleRate:  cfg.Sentry.SampleRate,
		}); err != nil {
			logger.Warn("sentry init failed", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	db, err := database.New(cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()
	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(model.AllModels()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
	}

	// 事件发布：Kafka 或仅日志
	var publisher events.Publisher = events.LogPublisher{}
	if cfg.Kafka.Enabled {
		producer, err := events.NewSyncProducer(cfg.Kafka.Brokers)
		if err != nil {
			return err
		}
		kp := events.NewKafkaPublisher(producer, cfg.Kafka.Topic)
		defer func() { _ = kp.Close() }()
		publisher = kp
	}
	dispatcher := service.NewEventDispatcher(publisher, cfg.Kafka.QueueSize)
	stopDispatcher := dispatcher.Start(cfg.Kafka.Workers)

	productRepo := repository.NewProductRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	userRepo := repository.NewUserRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// redis 未启用时必须传 nil 接口，不能传 (*cache.ProductCache)(nil)
	var productCache service.ProductCache
	var invalidator service.CacheInvalidator
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, product reads fall through to database", zap.Error(err))
		}
		pc := cache.NewProductCache(rdb, cfg.Redis.TTL)
		if err := metrics.RegisterProductCache(prometheus.DefaultRegisterer, func() (int64, int64, int64) {
			c := pc.Counters()
			return c.Hits, c.Misses, c.Loads
		}); err != nil {
			logger.Warn("register cache metrics", zap.Error(err))
		}
		productCache = pc
		invalidator = pc
	}

	tax, err := service.TaxPolicyByName(cfg.Order.TaxPolicy)
	if err != nil {
		return err
	}
	gateway := payment.NewPaystack(payment.PaystackConfig{
		SecretKey:    cfg.Paystack.SecretKey,
		BaseURL:      cfg.Paystack.BaseURL,
		Timeout:      cfg.Paystack.Timeout,
		MaxFailures:  cfg.Paystack.MaxFailures,
		ResetTimeout: cfg.Paystack.ResetTimeout,
	})
	if err := metrics.RegisterPaymentBreaker(prometheus.DefaultRegisterer, func() float64 {
		return float64(gateway.Breaker().State())
	}); err != nil {
		logger.Warn("register breaker metrics", zap.Error(err))
	}

	notificationService := service.NewNotificationService(notificationRepo, dispatcher)
	orderService := service.NewOrderService(productRepo, orderRepo, gateway, notificationService, invalidator, service.OrderOptions{
		FrontendURL:          cfg.Server.FrontendURL,
		Currency:             cfg.Order.Currency,
		SupportEmail:         cfg.Order.SupportEmail,
		SupportPhone:         cfg.Order.SupportPhone,
		ResolveLimit:         cfg.Order.ResolveLimit,
		VerifyMaxTries:       cfg.Paystack.VerifyMaxTries,
		VerifyInitialBackoff: cfg.Paystack.VerifyInitialBackoff,
		Tax:                  tax,
	})
	productService := service.NewProductService(productRepo, productCache)
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expire)
	adminService := service.NewAdminService(userRepo, productRepo, orderRepo, invalidator, notificationService)

	var limiter *middleware.IPRateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewIPRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		go sweepVisitors(ctx, limiter)
	}

	h := handler.New(orderService, productService, authService, notificationService, adminService)
	router := api.NewRouter(api.RouterOptions{
		Config:      cfg,
		Handler:     h,
		Tokens:      authService,
		RateLimiter: limiter,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("mode", cfg.Server.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	if err := stopDispatcher(shutdownCtx); err != nil {
		logger.Warn("dispatcher did not drain", zap.Int("pending", dispatcher.QueueLen()), zap.Error(err))
	}
	return nil
}

func sweepVisitors(ctx context.Context, l *middleware.IPRateLimiter) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			l.Sweep(now)
		}
	}
}
