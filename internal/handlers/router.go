package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"twod-ledger-backend/internal/middleware"
	"twod-ledger-backend/internal/services"
)

type RouterConfig struct {
	Engine          *services.Engine
	JWT             *services.JWTService
	Hub             *WebSocketHub
	AdminRateLimit  int
	AdminRateWindow time.Duration
	Log             *zap.Logger
}

func NewRouter(rc RouterConfig) *gin.Engine {
	log := rc.Log
	if log == nil {
		log = zap.NewNop()
	}

	accountHandler := NewAccountHandler(rc.Engine.Accounts, log)
	wagerHandler := NewWagerHandler(rc.Engine, log)
	adminHandler := NewAdminHandler(rc.Engine, log)
	wsHandler := NewWebSocketHandler(rc.Engine.Accounts, rc.Hub, log)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.Logger(log), middleware.CORS())

	router.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := rc.Engine.Store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "details": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/market", wagerHandler.GetMarket)
	router.POST("/accounts", accountHandler.Register)

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(rc.JWT))
	{
		protected.GET("/me", accountHandler.GetCurrentUser)
		protected.GET("/balance", accountHandler.GetBalance)
		protected.GET("/transactions", accountHandler.GetTransactions)
		protected.GET("/blocklist", wagerHandler.GetBlockList)
		protected.GET("/ws", wsHandler.HandleWebSocket)

		wagers := protected.Group("/wagers")
		{
			wagers.POST("", wagerHandler.PlaceWager)
			wagers.GET("", accountHandler.GetWagers)
			wagers.DELETE("/settled", accountHandler.CleanupSettled)
		}

		admin := protected.Group("/admin")
		admin.Use(
			middleware.RequireAdmin(),
			middleware.RateLimitMiddleware(rc.Engine.Limiter, services.ActionAdmin, rc.AdminRateLimit, rc.AdminRateWindow, log),
		)
		{
			admin.POST("/settle", adminHandler.Settle)
			admin.GET("/blocklist", wagerHandler.GetBlockList)
			admin.POST("/blocklist", adminHandler.MutateBlockList)
			admin.POST("/topup", accountHandler.TopUp)
		}
	}

	return router
}
