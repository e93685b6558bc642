package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/safedeal/escrow-backend/internal/config"
	"github.com/safedeal/escrow-backend/internal/http/handlers"
	"github.com/safedeal/escrow-backend/internal/http/middleware"
	"github.com/safedeal/escrow-backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	transactionHandler *handlers.TransactionHandler,
	paymentHandler *handlers.PaymentHandler,
	disputeHandler *handlers.DisputeHandler,
	adminHandler *handlers.AdminHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.StaticFS("/storage/evidence", http.Dir(cfg.EvidenceStoragePath))

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
	}

	api.GET("/ws", wsHandler.Handle)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		marketplace := protected.Group("/marketplace/transactions")
		{
			marketplace.POST("", transactionHandler.Create)
			marketplace.GET("", transactionHandler.List)
			marketplace.GET("/:id", middleware.UUIDValidator("id"), transactionHandler.Get)
			marketplace.GET("/:id/logs", middleware.UUIDValidator("id"), transactionHandler.Logs)
			marketplace.POST("/:id/release", middleware.UUIDValidator("id"), transactionHandler.Release)
			marketplace.POST("/:id/refund", middleware.UUIDValidator("id"), transactionHandler.Refund)
			marketplace.POST("/:id/dispute", middleware.UUIDValidator("id"), transactionHandler.Dispute)
		}

		protected.POST("/transactions/:id/create-payment", middleware.UUIDValidator("id"), paymentHandler.CreatePayment)
		protected.POST("/transactions/:id/confirm-payment", middleware.UUIDValidator("id"), paymentHandler.ConfirmPayment)

		protected.GET("/disputes/:id", middleware.UUIDValidator("id"), disputeHandler.Get)
		protected.GET("/disputes/:id/evidence", middleware.UUIDValidator("id"), disputeHandler.ListEvidence)
		protected.POST("/disputes/:id/evidence", middleware.UUIDValidator("id"), disputeHandler.AddEvidence)

		admin := protected.Group("/admin")
		admin.Use(middleware.AdminOnly())
		{
			admin.GET("/disputes", adminHandler.ListDisputes)
			admin.PATCH("/disputes/:id", middleware.UUIDValidator("id"), adminHandler.UpdateDispute)
			admin.GET("/reports/transactions", adminHandler.TransactionsReport)
			admin.GET("/reports/earnings", adminHandler.EarningsReport)
		}
	}

	return r
}
