package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"mint-gate.backend/internal/interfaces/http/handlers"
	"mint-gate.backend/internal/interfaces/http/middleware"
)

type routeDeps struct {
	paymentHandler  *handlers.PaymentQueueHandler
	mintHandler     *handlers.MintQueueHandler
	x402Handler     *handlers.X402Handler
	settingsHandler *handlers.SettingsHandler
	adminAuth       gin.HandlerFunc
}

func applyCORSMiddleware(r *gin.Engine) {
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, Idempotency-Key, X-PAYMENT, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})
}

func registerHealthRoute(r *gin.Engine, health *handlers.HealthHandler) {
	r.GET("/health", health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func registerAPIV1Routes(r *gin.Engine, d routeDeps) {
	v1 := r.Group("/api/v1")
	{
		payments := v1.Group("/payments")
		{
			payments.POST("", middleware.IdempotencyMiddleware(), d.paymentHandler.EnqueuePayment)
			payments.GET("/stats", d.paymentHandler.GetStats)
			payments.GET("/:id", d.paymentHandler.GetPayment)
		}

		mints := v1.Group("/mints")
		{
			mints.POST("", middleware.IdempotencyMiddleware(), d.mintHandler.EnqueueMint)
			mints.GET("/stats", d.mintHandler.GetStats)
			mints.GET("/:id", d.mintHandler.GetMint)
		}

		// x402 paywall flow
		v1.POST("/x402/mint", d.x402Handler.MintWithPayment)

		// Admin settings (protected)
		settings := v1.Group("/settings")
		settings.Use(d.adminAuth)
		{
			settings.GET("", d.settingsHandler.ListSettings)
			settings.GET("/:key", d.settingsHandler.GetSetting)
			settings.PUT("/:key", d.settingsHandler.UpsertSetting)
		}
	}
}
