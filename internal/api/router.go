package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"equipment-twin-backend/internal/mw"
	"equipment-twin-backend/internal/store"
)

// Options tunes the router middleware.
type Options struct {
	RateLimit rate.Limit
	Burst     int
	CacheTTL  time.Duration
	// StartupErr, when set, keeps the API unmounted; only probes answer.
	StartupErr error
}

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, logger *slog.Logger, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.RequestID(), mw.AccessLog(logger))

	health := NewHealth(opts.StartupErr)
	r.GET("/health", health.Live)
	r.GET("/ready", health.Ready)

	api := r.Group("/api")
	api.Use(mw.RateLimiter(opts.RateLimit, opts.Burst))

	if opts.StartupErr != nil || s == nil {
		api.Any("/*path", health.Unavailable)
		return r
	}

	handler := NewHandler(s, logger)

	responses := mw.NewResponseCache(opts.CacheTTL)
	caching := responses.Cache()

	equipment := api.Group("/equipment")
	equipment.Use(responses.Invalidate())
	{
		equipment.GET("", caching, handler.ListEquipment)
		equipment.GET("/stats", caching, handler.GetStats)
		equipment.GET("/search", caching, handler.SearchEquipment)
		equipment.GET("/:id", caching, handler.GetEquipment)
		equipment.POST("", handler.CreateEquipment)
		equipment.PUT("/:id", handler.UpdateEquipment)
		equipment.DELETE("/:id", handler.DeleteEquipment)
	}

	return r
}
