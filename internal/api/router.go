package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"beer-scanner-backend/config"
	"beer-scanner-backend/internal/metrics"
	"beer-scanner-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(handler *Handler, cfg config.ServerConfig, m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.RequestIPHeader != "" {
		r.RemoteIPHeaders = []string{cfg.RequestIPHeader}
	}

	// Initialize middleware
	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	responses := mw.NewResponseCache(time.Duration(cfg.CacheTTLSeconds) * time.Second)
	caching := responses.Cache()

	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	// API group
	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/bars", caching, handler.GetBars)
		api.GET("/bars/:bar_id/beers", caching, handler.GetBarBeers)
		api.GET("/bars/:bar_id/checks", handler.GetBarChecks)
		api.GET("/bars/:bar_id/stats", handler.GetBarStats)
		api.GET("/stats", handler.GetStats)
		api.GET("/beers/:beer_id", caching, handler.GetBeer)
		api.GET("/beer-types", handler.GetBeerTypes)

		api.GET("/users/:user_id/notifications", handler.GetNotifications)
		api.POST("/notifications/:notification_id/read", handler.MarkNotificationRead)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	admin := api.Group("/admin")
	admin.Use(mw.RequireAdmin(cfg.AdminToken), responses.Invalidate())
	{
		admin.POST("/bars/:bar_id/check", handler.CheckBar)

		admin.PATCH("/beers/:beer_id", handler.UpdateBeer)
		admin.DELETE("/beers/:beer_id", handler.DeleteBeer)
		admin.POST("/beers/:beer_id/merge/:target_id", handler.MergeBeer)
		admin.GET("/beers/:beer_id/aliases", handler.GetAliases)
		admin.POST("/beers/:beer_id/aliases", handler.PostAlias)
		admin.DELETE("/aliases/:alias_id", handler.DeleteAlias)

		admin.POST("/notifications/broadcast", handler.Broadcast)
	}

	return r
}
