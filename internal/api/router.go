package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"pencil-me-in-backend/config"
	"pencil-me-in-backend/internal/metrics"
	"pencil-me-in-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(handler *Handler, cfg config.ServerConfig, rec *metrics.Recorder, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(mw.Logger(log))
	r.Use(mw.Metrics(rec))

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	cacheStore := cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	caching := mw.Cache(cacheStore, cfg.CacheTTL, rec)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})
	r.GET("/metrics", gin.WrapH(rec.Handler()))

	api := r.Group("/api")
	api.Use(rateLimiter, caching)
	{
		api.POST("/events", handler.CreateEvent)
		api.GET("/events", handler.ListEvents)
		api.GET("/events/:id", handler.GetEvent)
		api.PATCH("/events/:id", handler.RenameEvent)
		api.DELETE("/events/:id", handler.DeleteEvent)

		api.PUT("/events/:id/availability", handler.SubmitAvailability)
		api.POST("/events/:id/availability", handler.SetAvailability)

		api.GET("/events/:id/best", handler.BestSlots)
		api.GET("/events/:id/heatmap", handler.Heatmap)
		api.GET("/events/:id/participants", handler.Participants)
		api.GET("/events/:id/participants/:pid/slots", handler.ParticipantSlots)
		api.GET("/events/:id/share", handler.Share)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
