package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rainsync/internal/clients"
	"rainsync/internal/config"
	"rainsync/internal/handlers"
	"rainsync/internal/middleware"
	"rainsync/internal/models"
	"rainsync/internal/repository"
	"rainsync/internal/service"
	"rainsync/internal/worker"
	"rainsync/pkg/database"
	redispkg "rainsync/pkg/redis"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	goredis "github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
)

func main() {
	once := flag.Bool("once", false, "run a single sync cycle and exit (for external cron)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	log.Println("=== Rainfall Sync Service Starting ===")

	cfg := config.Load()
	models.SetReadingTable(cfg.DB.Table)

	db, err := database.Connect(database.Config{
		URL:      cfg.DB.URL,
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		DBName:   cfg.DB.DBName,
		SSLMode:  cfg.DB.SSLMode,
	})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	if err := database.Migrate(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Redis backs the sensor catalog and duplicate-skip caches. A one-shot
	// run can live without it; the long-running service cannot.
	var redisClient *goredis.Client
	var cacheRepo repository.CacheRepository

	redisClient, err = redispkg.Connect(redispkg.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		if !*once {
			log.Fatal("Failed to connect to Redis:", err)
		}
		log.Printf("Redis unavailable, continuing without cache: %v", err)
		redisClient = nil
		cacheRepo = repository.NewNoopCacheRepository()
	} else {
		defer redisClient.Close()
		cacheRepo = repository.NewCacheRepository(redisClient)
	}

	readingRepo := repository.NewReadingRepository(db)
	runRepo := repository.NewRunRepository(db)

	mertaniClient := clients.NewMertaniClient(clients.MertaniConfig{
		BaseURL:  cfg.Mertani.BaseURL,
		Email:    cfg.Mertani.Email,
		Password: cfg.Mertani.Password,
	})

	syncService := service.NewSyncService(readingRepo, runRepo, cacheRepo, mertaniClient, service.SyncConfig{
		SensorIDs: cfg.Sync.SensorIDs,
		Window:    cfg.Sync.Window,
		Workers:   cfg.Sync.Workers,
		BatchSize: cfg.Sync.BatchSize,
	})
	exportService := service.NewExportService(readingRepo, cfg.Export.OutputDir)

	if *once {
		runOnce(syncService)
		return
	}

	scheduler := worker.NewScheduler()

	if cfg.Sync.Enabled {
		scheduler.AddWorker(worker.NewSyncWorker(syncService, cfg.Sync.Cron))
		log.Printf("Sync Worker enabled (schedule: %q)", cfg.Sync.Cron)
	}
	if cfg.Housekeeping.Enabled {
		scheduler.AddWorker(worker.NewHousekeepingWorker(runRepo,
			cfg.Housekeeping.Interval, cfg.Housekeeping.RunRetention))
		log.Printf("Housekeeping Worker enabled (interval: %v)", cfg.Housekeeping.Interval)
	}

	go scheduler.Start()
	defer scheduler.Stop()

	if cfg.App.Debug {
		gin.SetMode(gin.DebugMode)
		log.Println("Running in DEBUG mode")
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", cfg.App.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if !cfg.App.Debug {
		limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
		r.Use(middleware.RateLimitMiddleware(limiter))
		log.Printf("Rate limiting enabled: %d req/sec, burst: %d",
			cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}

	readingHandler := handlers.NewReadingHandler(readingRepo, runRepo)
	exportHandler := handlers.NewExportHandler(exportService)
	syncHandler := handlers.NewSyncHandler(syncService)
	systemHandler := handlers.NewSystemHandler(readingRepo, runRepo, redisClient, len(cfg.Sync.SensorIDs))

	api := r.Group("/api/v1")

	api.GET("/health", systemHandler.Health)
	api.GET("/system/stats", systemHandler.Stats)
	api.GET("/readings/latest", readingHandler.Latest)
	api.GET("/readings", readingHandler.Range)
	api.GET("/runs", readingHandler.Runs)
	api.GET("/export", exportHandler.Export)

	// Manual refresh is debug-only; production syncs on schedule.
	if cfg.App.Debug {
		api.POST("/refresh", syncHandler.Refresh)
		api.POST("/refresh/:sensor", syncHandler.RefreshSensor)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%s", cfg.App.Port)
		log.Printf("API available at http://localhost:%s/api/v1", cfg.App.Port)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed to start:", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited properly")
}

// runOnce executes a single sync cycle, exiting non-zero on failure so
// the external scheduler can surface it.
func runOnce(syncService service.SyncService) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	run, err := syncService.SyncAll(ctx)
	if err != nil {
		log.Fatal("Sync failed:", err)
	}

	log.Printf("Done: %d/%d sensors ok, %d rows upserted",
		run.SensorsOK, run.SensorsTotal, run.RowsUpserted)
}
