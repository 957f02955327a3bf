package v1

import (
	"net/http"
	"slices"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dmehra2102/prod-golang-projects/dentalsync/config"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/pkg/metrics"
)

type RouterDeps struct {
	Config       *config.Config
	Log          *zap.Logger
	Metrics      *metrics.Collector
	JWT          *auth.JWTManager
	Appointments *AppointmentHandler
	Patients     *PatientHandler
	System       *SystemHandler
	Auth         *AuthHandler
}

func NewRouter(d RouterDeps) *gin.Engine {
	if d.Config.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(d.Log))
	r.Use(Metrics(d.Metrics))
	r.Use(cors.New(corsConfig(d.Config.CORS)))

	limiter := NewIPRateLimiter(rate.Limit(d.Config.RateLimit.RequestsPerSecond), d.Config.RateLimit.BurstSize, d.Log)

	r.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))

	api := r.Group("/api")
	api.Use(limiter.RateLimit())
	{
		api.GET("/health", d.System.Health)
		api.GET("/sync-status", d.System.SyncStatus)
		// A reset clears change tracking for every client, so it needs a token.
		api.POST("/sync", AuthRequiredWhen(d.JWT, resetRequested), d.System.Sync)
		api.GET("/sync/runs", AuthRequired(d.JWT), d.System.Runs)

		api.GET("/appointments", d.Appointments.List)
		api.GET("/appointments/search", d.Appointments.Search)
		api.GET("/appointments/:id", d.Appointments.Get)
		api.PUT("/appointments/:id/status", AuthRequired(d.JWT), d.Appointments.UpdateStatus)

		api.GET("/patients", d.Patients.List)
		api.GET("/patients/:id", d.Patients.Get)

		api.POST("/auth/login", d.Auth.Login)
		api.POST("/auth/refresh", d.Auth.Refresh)
	}

	r.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "route not found")
	})

	return r
}

// A "*" origin opens the API to any client, as the mobile app's dev server
// needs.
func corsConfig(cfg config.CORSConfig) cors.Config {
	cc := cors.Config{
		AllowMethods: cfg.AllowedMethods,
		AllowHeaders: cfg.AllowedHeaders,
		MaxAge:       cfg.MaxAge,
	}
	if slices.Contains(cfg.AllowedOrigins, "*") {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = cfg.AllowedOrigins
	}
	return cc
}
