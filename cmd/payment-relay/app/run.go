package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aq2208/payment-relay/configs"
	"github.com/aq2208/payment-relay/internal/adapter/cache"
	"github.com/aq2208/payment-relay/internal/adapter/gateway"
	httpadapter "github.com/aq2208/payment-relay/internal/adapter/http"
	"github.com/aq2208/payment-relay/internal/logging"
	"github.com/aq2208/payment-relay/internal/security"
	"github.com/aq2208/payment-relay/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const userAgent = "payment-relay/1.0"

type App struct {
	Router *gin.Engine
	Server *http.Server
	Logger *slog.Logger
}

func InitWithConfig(cfg configs.Config) (*App, func(), error) {
	logger := logging.Init(cfg.App.Name, logging.Options{
		Level:  cfg.App.LogLevel,
		File:   cfg.App.LogFile,
		Format: cfg.App.LogFormat,
	})

	// load gateway keys; one verifier and one client serve every request
	km, err := security.LoadKeyMaterial(cfg)
	if err != nil {
		return nil, nil, err
	}
	verifier, err := security.NewHMACVerifier(km)
	if err != nil {
		return nil, nil, err
	}
	gw := gateway.NewRazorpayClient(km, gateway.Options{
		BaseURL:   cfg.Gateway.BaseURL,
		Timeout:   cfg.Gateway.Timeout,
		UserAgent: userAgent,
	})

	cleanup := func() {}
	opts := httpadapter.RouterOptions{
		Logger:         logging.New("http"),
		PerMinute:      cfg.RateLimit.PerMinute,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
	}

	// init redis (optional, rate limiting only)
	if cfg.Redis.Addr != "" && cfg.RateLimit.PerMinute > 0 {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password.Reveal(),
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
		}
		opts.Limiter = cache.NewRedisRateLimiter(rdb)
		cleanup = func() { _ = rdb.Close() }
		logger.Info("rate limiting enabled", "redis", cfg.Redis.Addr, "per_minute", cfg.RateLimit.PerMinute)
	}

	createUC := usecase.NewCreateOrder(gw)
	verifyUC := usecase.NewVerifyPayment(verifier)
	h := httpadapter.NewPaymentHandler(createUC, verifyUC)
	router := httpadapter.NewRouter(h, opts)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{Router: router, Server: srv, Logger: logger}, cleanup, nil
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Server.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
