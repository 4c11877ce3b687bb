package handler

import (
	"loyalty-ledger/internal/adapter/http/middleware"
	redisStore "loyalty-ledger/internal/adapter/storage/redis"
	"loyalty-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	FacadeSvc      ports.FacadeService
	QueueSvc       ports.QueueService
	Monitor        ports.ConnectivityMonitor
	AccountRepo    ports.AccountRepository
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Gatherer       prometheus.Gatherer // nil = metrics endpoint disabled
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Deep health check verifying PostgreSQL + Redis
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	scanHandler := NewScanHandler(deps.FacadeSvc, deps.QueueSvc, deps.Monitor)
	customerHandler := NewCustomerHandler(deps.AccountRepo)

	scans := v1.Group("/scans", jwtAuth)
	{
		scans.POST("", rl("scans"), scanHandler.Submit)
	}

	queue := v1.Group("/queue", jwtAuth)
	{
		queue.GET("/status", scanHandler.QueueStatus)
	}

	customers := v1.Group("/customers", jwtAuth)
	{
		customers.GET("/:dni", rl("customers"), customerHandler.Get)
	}

	return r
}
