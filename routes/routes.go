// Package routes wires the HTTP API: middleware, route groups, and
// request validation.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"quantpulse/controllers"
	"quantpulse/events"
	"quantpulse/middleware"
	"quantpulse/models"
	"quantpulse/scheduler"
	"quantpulse/services/analyzer"
	"quantpulse/services/auth"
	"quantpulse/services/marketdata"
	"quantpulse/services/notifier"
	"quantpulse/services/symbols"
)

// Deps holds the services the routes dispatch to
type Deps struct {
	DB         *gorm.DB
	Auth       *auth.Service
	Symbols    *symbols.Service
	MarketData *marketdata.Service
	Analyzer   *analyzer.Service
	Notifier   *notifier.Service
	Hub        *notifier.Hub
	Archive    controllers.SignalArchive
	Bus        *events.Bus
	Scheduler  *scheduler.Scheduler
	Providers  map[string]symbols.SymbolProvider
	LoginLimit *middleware.RateLimiter
}

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, deps Deps) {
	registerValidators()

	router.Use(middleware.CORS())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.Metrics())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Initialize controllers
	authController := controllers.NewAuthController(deps.Auth, deps.LoginLimit)
	symbolController := controllers.NewSymbolController(deps.Symbols, deps.Providers)
	marketDataController := controllers.NewMarketDataController(deps.MarketData)
	analyzerController := controllers.NewAnalyzerController(deps.Analyzer, deps.Archive)
	notifierController := controllers.NewNotifierController(deps.Notifier, deps.Hub)
	pipelineController := controllers.NewPipelineController(deps.Scheduler)
	eventsController := controllers.NewEventsController(deps.Bus)

	authRequired := middleware.AuthMiddleware(deps.DB)
	adminOnly := middleware.RequireAdmin()
	approvedOnly := middleware.RequireApproved()

	// API v1 group
	api := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authController.Register)
			authGroup.POST("/login", middleware.LoginRateLimit(deps.LoginLimit), authController.Login)
			authGroup.POST("/refresh", authController.Refresh)

			authGroup.GET("/me", authRequired, authController.Me)
			authGroup.PUT("/me", authRequired, authController.UpdateMe)

			users := authGroup.Group("/users", authRequired, adminOnly)
			{
				users.GET("", authController.ListUsers)
				users.GET("/pending", authController.ListPendingUsers)
				users.POST("/:id/approve", authController.ApproveUser)
				users.POST("/:id/reject", authController.RejectUser)
				users.DELETE("/:id", authController.DeactivateUser)
			}
		}

		// Symbol registry routes
		symbolGroup := api.Group("/symbols", authRequired, approvedOnly)
		{
			symbolGroup.GET("", symbolController.List)
			symbolGroup.GET("/selected", symbolController.Selected)
			symbolGroup.POST("/:symbol/select", symbolController.Select)
			symbolGroup.DELETE("/:symbol/select", symbolController.Deselect)
			symbolGroup.POST("/import", adminOnly, symbolController.Import)
			symbolGroup.POST("/import/:exchange", adminOnly, symbolController.ImportFromProvider)
		}

		// Market data routes
		marketGroup := api.Group("/market-data", authRequired, approvedOnly)
		{
			marketGroup.GET("/:symbol", marketDataController.History)
			marketGroup.POST("/:symbol/fetch", marketDataController.Fetch)
			marketGroup.POST("/fetch-all", marketDataController.FetchAll)
		}

		// Signal routes
		signalGroup := api.Group("/signals", authRequired, approvedOnly)
		{
			signalGroup.GET("", analyzerController.Signals)
			signalGroup.GET("/:id", analyzerController.GetSignal)
			signalGroup.GET("/archive/:symbol", analyzerController.ArchivedSignals)
		}

		// Analysis routes
		analysisGroup := api.Group("/analysis", authRequired, approvedOnly)
		{
			analysisGroup.POST("/:symbol/run", analyzerController.Analyze)
			analysisGroup.POST("/run", adminOnly, analyzerController.AnalyzeAll)
			analysisGroup.POST("/pipeline/run", adminOnly, pipelineController.Run)
		}

		// Event bus inspection
		api.GET("/events/recent", authRequired, adminOnly, eventsController.Recent)

		// Notification routes
		notificationGroup := api.Group("/notifications", authRequired, approvedOnly)
		{
			notificationGroup.GET("/recent", notifierController.Recent)
			notificationGroup.POST("/dispatch", adminOnly, notifierController.Dispatch)
			notificationGroup.GET("/ws", notifierController.Stream)
		}
	}
}

// registerValidators adds custom binding validators
func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("instrument", func(fl validator.FieldLevel) bool {
			return models.IsValidInstrumentType(fl.Field().String())
		})
	}
}
