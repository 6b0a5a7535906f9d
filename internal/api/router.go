package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/drivopay/payments/internal/handlers"
	"github.com/drivopay/payments/internal/middleware"
	"github.com/drivopay/payments/internal/telemetry"
)

type Handlers struct {
	Payments *handlers.PaymentHandler
	Payouts  *handlers.PayoutHandler
	Webhooks *handlers.WebhookHandler
}

// NewRouter wires the public routes. Only trustedProxies may set the client
// IP through forwarding headers; with none, rate limiting keys on the
// connection's remote address.
func NewRouter(h Handlers, limiter *middleware.RateLimiter, trustedProxies []string) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	if err := r.SetTrustedProxies(trustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware())

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "drivopay-payments"})
	})

	razorpay := r.Group("/api/razorpay")

	// Gateway retries must never be throttled.
	razorpay.POST("/webhook", h.Webhooks.Receive)

	limited := razorpay.Group("", limiter.Middleware())
	limited.POST("/create-order", h.Payments.CreateOrder)
	limited.POST("/create-qr", h.Payments.CreateQR)
	limited.POST("/verify-payment", h.Payments.VerifyPayment)
	limited.POST("/payout", h.Payouts.CreatePayout)
	limited.GET("/payouts/:id/state", h.Payouts.GetPayoutState)

	return r, nil
}
