package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"rentbook/internal/infra/config"
	"rentbook/internal/infra/obs"
)

type RentalsHTTP interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	Accept(c *gin.Context)
	Confirm(c *gin.Context)
	Extend(c *gin.Context)
	Cancel(c *gin.Context)
	PickUp(c *gin.Context)
	Return(c *gin.Context)
	Dispute(c *gin.Context)
	ListMine(c *gin.Context)
	ListOwned(c *gin.Context)
}

type AvailabilityHTTP interface {
	Calendar(c *gin.Context)
	Check(c *gin.Context)
	Block(c *gin.Context)
	Unblock(c *gin.Context)
}

type Handlers struct {
	Rentals      RentalsHTTP
	Availability AvailabilityHTTP
	// AllowOrigins defaults to any origin when empty.
	AllowOrigins []string
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewRouter builds the gin engine; tests drive it through httptest.
func NewRouter(obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.Correlate())
	router.Use(Identity())
	router.Use(obsMW.AccessLog())
	router.Use(cors.New(corsConfig(h.AllowOrigins)))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Rentals != nil {
		api.POST("/rentals", h.Rentals.Create)
		api.GET("/rentals/:id", h.Rentals.Get)
		api.POST("/rentals/:id/accept", h.Rentals.Accept)
		api.POST("/rentals/:id/confirm", h.Rentals.Confirm)
		api.POST("/rentals/:id/extend", h.Rentals.Extend)
		api.POST("/rentals/:id/cancel", h.Rentals.Cancel)
		api.POST("/rentals/:id/pickup", h.Rentals.PickUp)
		api.POST("/rentals/:id/return", h.Rentals.Return)
		api.POST("/rentals/:id/dispute", h.Rentals.Dispute)

		me := api.Group("/me")
		me.GET("/rentals", h.Rentals.ListMine)
		me.GET("/owner-rentals", h.Rentals.ListOwned)
	}
	if h.Availability != nil {
		items := api.Group("/items/:id/availability")
		items.GET("", h.Availability.Calendar)
		items.GET("/check", h.Availability.Check)
		items.POST("/block", h.Availability.Block)
		items.POST("/unblock", h.Availability.Unblock)
	}
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", userHeader, "Idempotency-Key"},
		ExposeHeaders: []string{"Content-Length", "Content-Type", obs.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func configureGinMode(env string) string {
	mode := gin.ReleaseMode
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		mode = gin.DebugMode
	case "test", "testing":
		mode = gin.TestMode
	}
	gin.SetMode(mode)
	return mode
}
