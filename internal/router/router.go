package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/altamontana/booking-api/internal/config"
	"github.com/altamontana/booking-api/internal/handler"
	"github.com/altamontana/booking-api/internal/middleware"
	"github.com/altamontana/booking-api/internal/model"
)

// Handlers groups every handler the API exposes.
type Handlers struct {
	Auth        *handler.AuthHandler
	Experiences *handler.ExperienceHandler
	Bookings    *handler.BookingHandler
	SiteContent *handler.SiteContentHandler
	Webpay      *handler.WebpayHandler
}

// RegisterRoutes registers endpoints that sit outside the /api tree: the
// welcome text, the health check, Prometheus metrics and uploaded images.
func RegisterRoutes(e *echo.Echo, uploadsDir string) {
	e.GET("/", handler.Root)
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.Static("/uploads", uploadsDir)
}

// RegisterAPI registers the /api tree.  Public reads go through the Redis
// response cache when rdb is non-nil; admin writes require a valid token
// with the Admin role.  Transaction creation is rate limited per client.
func RegisterAPI(e *echo.Echo, cfg config.Config, rdb *redis.Client, h Handlers, logger *zap.Logger) {
	api := e.Group("/api")

	admin := []echo.MiddlewareFunc{
		middleware.JWTAuth(cfg.JWTSecret, cfg.JWTIssuer),
		middleware.RequireRole(model.RoleAdmin),
	}
	var cached []echo.MiddlewareFunc
	var limited []echo.MiddlewareFunc
	if rdb != nil {
		cached = append(cached, middleware.NewRedisCache(cfg.Cache, rdb, logger))
		limited = append(limited, middleware.NewTokenBucket(cfg.RateLimit, rdb, logger))
	}

	// ---- Auth ----
	auth := api.Group("/auth")
	auth.POST("/login", h.Auth.Login)
	auth.GET("/profile", h.Auth.Profile, admin...)
	auth.PUT("/update-profile", h.Auth.UpdateProfile, admin...)

	// ---- Experiences ----
	exp := api.Group("/experiences")
	exp.GET("", h.Experiences.List, cached...)
	exp.GET("/:id", h.Experiences.Get, cached...)
	exp.POST("", h.Experiences.Create, admin...)
	exp.PUT("/:id", h.Experiences.Update, admin...)
	exp.DELETE("/:id", h.Experiences.Delete, admin...)
	exp.POST("/upload", h.Experiences.Upload, admin...)

	// ---- Bookings ----
	bookings := api.Group("/bookings")
	bookings.POST("", h.Bookings.Create)
	bookings.GET("", h.Bookings.List, admin...)
	bookings.GET("/confirmation/:buyOrder", h.Bookings.Confirmation)

	// ---- Site content ----
	sc := api.Group("/sitecontent")
	sc.GET("", h.SiteContent.List, cached...)
	sc.POST("", h.SiteContent.Create, admin...)
	sc.PUT("/:id", h.SiteContent.Update, admin...)

	// ---- Payments ----
	wp := api.Group("/webpay")
	wp.POST("/create", h.Webpay.Create, limited...)
	wp.POST("/checkout", h.Webpay.Checkout, limited...)
	wp.GET("/return", h.Webpay.Return)
	wp.POST("/return", h.Webpay.Return)
	wp.GET("/commit", h.Webpay.Commit)
	wp.GET("/status", h.Webpay.Status)
}
