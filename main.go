package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"quantpulse/config"
	"quantpulse/controllers"
	"quantpulse/events"
	"quantpulse/logger"
	"quantpulse/middleware"
	"quantpulse/models"
	"quantpulse/routes"
	"quantpulse/scheduler"
	"quantpulse/services/analyzer"
	"quantpulse/services/archive"
	"quantpulse/services/auth"
	"quantpulse/services/marketdata"
	"quantpulse/services/notifier"
	"quantpulse/services/providers"
	"quantpulse/services/symbols"
)

// dbInitialized tracks whether database has been successfully
// initialized, so /ready can report readiness from a background init
var dbInitialized bool
var dbInitMutex sync.RWMutex

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Get().Fatalw("failed to load configuration", "error", err)
	}
	logger.Init(cfg.Environment)
	defer logger.Sync()

	log := logger.Get()
	log.Infow("starting QuantPulse API", "environment", cfg.Environment)

	// Set Gin mode based on environment
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	// Health endpoints are registered before the database is ready so
	// the platform can see the service is up during startup
	setupHealthEndpoints(router)

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	// Start serving immediately; routes appear once init completes
	go func() {
		log.Infow("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server error", "error", err)
		}
	}()

	var jobScheduler *scheduler.Scheduler
	var bus *events.Bus
	var mongoArchive *archive.MongoArchive

	// Initialize database and wire services in background
	go func() {
		db, err := config.InitDB()
		if err != nil {
			log.Errorw("database connection failed, running health-check only", "error", err)
			return
		}

		log.Infow("running database migrations")
		if err := runMigrations(); err != nil {
			log.Errorw("migration failed", "error", err)
			return
		}

		if err := models.SeedDefaultAdminUser(db, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			log.Warnw("could not seed admin user", "error", err)
		}

		bus = events.NewBus(cfg.RedisAddr, cfg.RedisPassword)

		mongoArchive, err = archive.NewMongoArchive(context.Background(), cfg.MongoURI)
		if err != nil {
			log.Warnw("signal archive unavailable", "error", err)
			mongoArchive = nil
		}

		secProvider := providers.NewSECProvider(cfg.SECTickersURL, cfg.SECUserAgent, cfg.ProviderTimeout, cfg.ProviderRetries)
		nasdaqProvider := providers.NewNasdaqProvider(cfg.NasdaqURL, cfg.ProviderTimeout, cfg.ProviderRetries)
		yahooProvider := providers.NewYahooProvider(cfg.YahooChartURL, cfg.ProviderTimeout, cfg.ProviderRetries)

		hub := notifier.NewHub()
		authService := auth.NewService(db)
		symbolService := symbols.NewService(db, bus)
		marketDataService := marketdata.NewService(db, bus, yahooProvider)
		notifierService := notifier.NewService(db, hub, cfg.SlackWebhookURL, cfg.SlackEnabled)

		var archiver analyzer.Archiver
		if mongoArchive != nil && mongoArchive.Enabled() {
			archiver = mongoArchive
		}
		analyzerService := analyzer.NewService(db, bus, archiver)

		jobScheduler = scheduler.NewScheduler(db, marketDataService, analyzerService, notifierService)

		var signalArchive controllers.SignalArchive
		if mongoArchive != nil {
			signalArchive = mongoArchive
		}

		routes.SetupRoutes(router, routes.Deps{
			DB:         db,
			Auth:       authService,
			Symbols:    symbolService,
			MarketData: marketDataService,
			Analyzer:   analyzerService,
			Notifier:   notifierService,
			Hub:        hub,
			Archive:    signalArchive,
			Bus:        bus,
			Scheduler:  jobScheduler,
			Providers: map[string]symbols.SymbolProvider{
				"sec":    secProvider,
				"nasdaq": nasdaqProvider,
			},
			LoginLimit: middleware.NewLoginRateLimiter(),
		})

		dbInitMutex.Lock()
		dbInitialized = true
		dbInitMutex.Unlock()

		jobScheduler.Start(cfg.AnalyzerScheduleTime)

		// Refresh the registry on startup if it is empty. Runs in the
		// background so a slow SEC download does not delay readiness.
		go seedSymbolRegistry(db, symbolService, secProvider)

		log.Infow("application fully initialized")
	}()

	gracefulShutdown(server, func() {
		if jobScheduler != nil {
			jobScheduler.Stop()
		}
		if bus != nil {
			bus.Close()
		}
		if mongoArchive != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			mongoArchive.Close(ctx)
		}
	})
}

// runMigrations runs all database migrations
func runMigrations() error {
	db := config.DB

	if err := models.MigrateUserModels(db); err != nil {
		return err
	}
	if err := models.MigrateSymbolModels(db); err != nil {
		return err
	}
	if err := models.MigrateMarketModels(db); err != nil {
		return err
	}
	return nil
}

// seedSymbolRegistry imports SEC tickers when the registry is empty
func seedSymbolRegistry(db *gorm.DB, service *symbols.Service, provider symbols.SymbolProvider) {
	var count int64
	if err := db.Model(&models.Symbol{}).Count(&count).Error; err != nil {
		logger.Get().Warnw("could not count symbols", "error", err)
		return
	}
	if count > 0 {
		return
	}

	logger.Get().Infow("symbol registry empty, importing SEC tickers")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	summary, err := service.ImportFromProvider(ctx, "sec", provider)
	if err != nil {
		logger.Get().Warnw("startup symbol import failed", "error", err)
		return
	}
	logger.Get().Infow("startup symbol import complete",
		"inserted", summary.Inserted, "updated", summary.Updated)
}

// setupHealthEndpoints sets up liveness and readiness probes
func setupHealthEndpoints(router *gin.Engine) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "QuantPulse API",
			"version": "1.0.0",
		})
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/ready", func(c *gin.Context) {
		dbInitMutex.RLock()
		isDBReady := dbInitialized
		dbInitMutex.RUnlock()

		if !isDBReady {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database not connected",
			})
			return
		}

		sqlDB, err := config.DB.DB()
		if err != nil || sqlDB.Ping() != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database connection error",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	router.GET("/startup", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "started"})
	})
}

// gracefulShutdown blocks until a termination signal, then stops the
// background jobs and drains the HTTP server
func gracefulShutdown(server *http.Server, stopBackground func()) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	logger.Get().Infow("shutting down", "signal", sig.String())

	stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Get().Errorw("server forced to shutdown", "error", err)
	}

	if config.DB != nil {
		if sqlDB, err := config.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}

	logger.Get().Infow("server shutdown completed")
}
