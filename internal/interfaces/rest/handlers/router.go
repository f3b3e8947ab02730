package handlers

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/amankrmj01/bakery-payment-service/internal/interfaces/rest"
	"github.com/amankrmj01/bakery-payment-service/internal/interfaces/rest/middleware"
)

// NewRouter assembles the echo instance: recovery, request logging,
// validation and every route of the payment API.
func NewRouter(
	payments *PaymentHandler,
	refunds *RefundHandler,
	txns *TransactionHandler,
	health *HealthHandler,
	logger *slog.Logger,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = rest.NewValidator()

	e.Use(echomw.Recover())
	e.Use(requestLogger(logger))

	e.GET("/health", health.Live)
	e.GET("/health/ready", health.Ready)

	api := e.Group("/api", middleware.Identity())

	p := api.Group("/payments")
	p.POST("", payments.Create)
	p.GET("", payments.ListAll, middleware.RequireAdmin())
	p.GET("/:id", payments.GetByID)
	p.GET("/reference/:reference", payments.GetByReference)
	p.GET("/order/:orderId", payments.GetByOrder)
	p.GET("/user/:userId", payments.ListByUser)
	p.GET("/status/:status", payments.ListByStatus, middleware.RequireAdmin())
	p.PATCH("/:id/status", payments.UpdateStatus, middleware.RequireAdmin())
	p.POST("/:id/cancel", payments.Cancel)
	p.POST("/:id/retry", payments.Retry)
	p.GET("/statistics", payments.Statistics, middleware.RequireAdmin())

	r := api.Group("/refunds")
	r.POST("", refunds.Create)
	r.GET("", refunds.ListAll, middleware.RequireAdmin())
	r.GET("/:id", refunds.GetByID)
	r.GET("/reference/:reference", refunds.GetByReference)
	r.GET("/payment/:paymentId", refunds.ListByPayment)
	r.GET("/user/:userId", refunds.ListByRequester)
	r.GET("/status/:status", refunds.ListByStatus, middleware.RequireAdmin())
	r.GET("/pending", refunds.ListPending, middleware.RequireAdmin())
	r.GET("/completed", refunds.ListCompleted, middleware.RequireAdmin())
	r.GET("/failed", refunds.ListFailed, middleware.RequireAdmin())
	r.GET("/search", refunds.Search, middleware.RequireAdmin())
	r.GET("/filter", refunds.Filter, middleware.RequireAdmin())
	r.POST("/:id/approve", refunds.Approve, middleware.RequireAdmin())
	r.POST("/:id/reject", refunds.Reject, middleware.RequireAdmin())
	r.GET("/statistics", refunds.Statistics, middleware.RequireAdmin())

	t := api.Group("/transactions")
	t.GET("/:id", txns.GetByID)
	t.GET("/payment/:paymentId", txns.ListByPayment)
	t.GET("/payment/:paymentId/summary", txns.Summary)
	t.GET("/gateway/:gatewayId", txns.GetByGatewayID, middleware.RequireAdmin())
	t.GET("/type/:type", txns.ListByType, middleware.RequireAdmin())
	t.GET("/status/:status", txns.ListByStatus, middleware.RequireAdmin())

	return e
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.InfoContext(c.Request().Context(), "http request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", c.RealIP(),
			)
			return err
		}
	}
}
