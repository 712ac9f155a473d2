package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"staybook/internal/infra/config"
	"staybook/internal/infra/obs"
)

type BookingHTTP interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	Modify(c *gin.Context)
	Cancel(c *gin.Context)
	ListByProperty(c *gin.Context)
	ListByGuest(c *gin.Context)
}

type AvailabilityHTTP interface {
	Calendar(c *gin.Context)
	Check(c *gin.Context)
	Quote(c *gin.Context)
}

type PaymentsHTTP interface {
	Receive(c *gin.Context)
}

type Handlers struct {
	Booking      BookingHTTP
	Availability AvailabilityHTTP
	Payments     PaymentsHTTP
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(cfg.CORSOrigins, obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewRouter builds the engine without touching the global gin mode.
func NewRouter(origins []string, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.Trace())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(corsConfig(origins)))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Availability != nil {
		api.GET("/properties/:id/availability", h.Availability.Calendar)
		api.GET("/properties/:id/availability/check", h.Availability.Check)
		api.GET("/properties/:id/quote", h.Availability.Quote)
	}
	if h.Booking != nil {
		api.GET("/properties/:id/bookings", h.Booking.ListByProperty)
		api.GET("/guests/:id/bookings", h.Booking.ListByGuest)

		bookings := api.Group("/bookings")
		bookings.POST("", h.Booking.Create)
		bookings.GET("/:id", h.Booking.Get)
		bookings.PUT("/:id", h.Booking.Modify)
		bookings.PUT("/:id/cancel", h.Booking.Cancel)
	}
	if h.Payments != nil {
		api.POST("/payments/events", h.Payments.Receive)
	}
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Idempotency-Key", "X-Request-ID", "X-Guest-ID", "traceparent"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
			"Retry-After",
		},
		MaxAge: 12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug", "dev", "local":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
