package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/brickbid/brickbid/pkg/auth"
)

// RequestLogger logs every request with timing through slog
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
		)
	}
}

// NewRouter configures all gin routes
func NewRouter(handler *Handler, signer *auth.Signer, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(logger))

	router.GET("/health", handler.Health)

	v1 := router.Group("/api/v1")

	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/challenge", handler.Challenge)
		authGroup.POST("/login", handler.Login)
	}

	me := v1.Group("/accounts/me", auth.RequireAuth(signer))
	{
		me.GET("", handler.GetProfile)
		me.PATCH("", handler.UpdateProfile)
		me.GET("/stats", handler.GetAccountStats)
		me.GET("/bids", handler.ListAccountBids)
		me.GET("/listings", handler.ListAccountListings)
	}

	listingGroup := v1.Group("/listings")
	{
		listingGroup.GET("", handler.ListListings)
		listingGroup.GET("/:id", handler.GetListing)
		listingGroup.GET("/:id/bids", handler.ListBids)

		protected := listingGroup.Group("", auth.RequireAuth(signer))
		{
			protected.POST("", handler.CreateListing)
			protected.POST("/:id/bids", handler.PlaceBid)
			protected.POST("/:id/settle", handler.Settle)
			protected.POST("/:id/archive", handler.Archive)
		}
	}

	return router
}
