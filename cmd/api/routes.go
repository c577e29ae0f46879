package main

import (
	"github.com/gin-gonic/gin"

	"github.com/pymthouse/gateway/internal/config"
	"github.com/pymthouse/gateway/internal/middleware"
	"github.com/pymthouse/gateway/internal/tracing"
	"github.com/pymthouse/gateway/pkg/models"
)

func setupRouter(api *API, cfg *config.Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(api.logger))
	if cfg.Tracing.Enabled {
		router.Use(tracing.Middleware())
	}

	rl := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)

	// Health check
	router.GET("/health", api.healthCheck)

	// Admin and reporting API
	v1 := router.Group("/api/v1", middleware.BearerAuth(api.auth), middleware.RateLimit(rl))
	{
		admin := v1.Group("", middleware.RequireScope(models.ScopeAdmin))
		{
			admin.POST("/end-users", api.createEndUser)
			admin.PATCH("/end-users/:id", api.updateEndUser)
			admin.POST("/end-users/:id/credit", api.addCredit)
			admin.POST("/end-users/:id/debit", api.deductCredit)

			admin.POST("/tokens", api.issueToken)
			admin.GET("/tokens", api.listTokens)
			admin.DELETE("/tokens/:id", api.revokeToken)

			admin.POST("/streams/:manifest_id/end", api.endStream)

			admin.PUT("/signer", api.updateSignerConfig)
			admin.POST("/signer/sync", api.syncSignerStatus)
		}

		read := v1.Group("", middleware.RequireScope(models.ScopeRead))
		{
			read.GET("/end-users", api.listEndUsers)
			read.GET("/end-users/:id", api.getEndUser)
			read.GET("/end-users/:id/balance", api.getCreditBalance)

			read.GET("/transactions", api.listTransactions)
			read.GET("/streams", api.listStreams)

			read.GET("/signer", api.getSignerConfig)
		}
	}

	// Payment protocol proxy
	proxy := router.Group("/api/signer",
		middleware.BearerAuth(api.auth),
		middleware.RequireScope(models.ScopeGateway),
		middleware.RateLimit(rl),
	)
	{
		proxy.POST("/sign-orchestrator-info", api.signOrchestratorInfo)
		proxy.POST("/generate-live-payment", api.generateLivePayment)
	}

	return router
}
