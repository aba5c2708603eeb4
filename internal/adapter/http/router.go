package http

import (
	"log/slog"
	"time"

	"github.com/aq2208/payment-relay/internal/adapter/http/middleware"
	"github.com/aq2208/payment-relay/internal/logging"
	"github.com/aq2208/payment-relay/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterOptions struct {
	Logger *slog.Logger

	// Limiter is optional; nil disables rate limiting.
	Limiter   usecase.RateLimiter
	PerMinute int

	// TrustedProxies lists the CIDRs or IPs whose X-Forwarded-For is honoured.
	// Empty means the peer address is the client address.
	TrustedProxies []string

	// MaxBodyBytes caps request bodies; zero uses middleware.MaxBodyBytes.
	MaxBodyBytes int64
}

func NewRouter(h *PaymentHandler, opts RouterOptions) *gin.Engine {
	l := opts.Logger
	if l == nil {
		l = logging.New("http")
	}

	r := gin.New()
	if err := r.SetTrustedProxies(opts.TrustedProxies); err != nil {
		l.Error("invalid trusted proxies, trusting none", "error", err)
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(
		gin.Recovery(),
		middleware.MetricsMiddleware(),
		middleware.CORS(),
		middleware.BodyLimit(opts.MaxBodyBytes),
		middleware.Logging(l),
	)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	// Prometheus endpoint (scraped by Prometheus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	payments := r.Group("/")
	if opts.Limiter != nil {
		payments.Use(middleware.RateLimit(opts.Limiter, opts.PerMinute, time.Minute))
	}
	{
		payments.POST("/create-order", h.CreateOrder)
		payments.POST("/verify-payment", h.VerifyPayment)
	}

	return r
}
