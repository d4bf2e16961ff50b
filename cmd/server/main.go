package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/otcheredev/ris-imaging-pipeline/internal/adapters"
	"github.com/otcheredev/ris-imaging-pipeline/internal/cache"
	"github.com/otcheredev/ris-imaging-pipeline/internal/config"
	"github.com/otcheredev/ris-imaging-pipeline/internal/database"
	"github.com/otcheredev/ris-imaging-pipeline/internal/handlers"
	"github.com/otcheredev/ris-imaging-pipeline/internal/keys"
	"github.com/otcheredev/ris-imaging-pipeline/internal/metrics"
	"github.com/otcheredev/ris-imaging-pipeline/internal/middleware"
	"github.com/otcheredev/ris-imaging-pipeline/internal/queue"
	"github.com/otcheredev/ris-imaging-pipeline/internal/repository"
	"github.com/otcheredev/ris-imaging-pipeline/internal/services"
	"github.com/otcheredev/ris-imaging-pipeline/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Initialize logger
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	log.Info().Msg("Starting Imaging Pipeline")

	// Connect to database
	dbConfig := database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
		LogLevel: cfg.Database.LogLevel,
	}

	if err := database.Connect(dbConfig); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	// Initialize rendered-image cache backend
	var cacheBackend cache.Cache
	if cfg.Cache.Enabled && cfg.Cache.Type == "redis" {
		addr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
		cacheBackend, err = cache.NewRedisCache(addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		log.Info().Msg("Redis cache initialized")
	} else {
		cacheBackend = cache.NewMemoryCache()
		log.Info().Msg("Memory cache initialized")
	}

	// Initialize repositories
	archiveRepo := repository.NewArchiveRepository()
	auditRepo := repository.NewAuditRepository()
	artifactRepo := repository.NewArtifactRepository()

	// Initialize key manager. Without a master key the service runs in
	// degraded mode: originals stored during this process lifetime cannot
	// be read back after restart.
	var keyStore keys.KeyStore
	if cfg.Keys.MasterKeyHex != "" {
		store, err := repository.NewEncryptedKeyStore(cfg.Keys.MasterKeyHex)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize key store")
		}
		keyStore = store
	}
	keyManager, err := keys.NewManager(keyStore, cfg.Keys.MasterKeyHex)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize key manager")
	}

	// Initialize provider factory
	providerFactory := adapters.NewProviderFactory()
	defer providerFactory.CloseAll()

	// Initialize metrics
	pipelineMetrics := metrics.NewPipelineMetrics()

	// Initialize services
	imagingService := services.NewImagingService(
		archiveRepo, auditRepo, artifactRepo,
		providerFactory, keyManager,
		cacheBackend, cfg.Cache.TTL,
		pipelineMetrics,
	)
	archiveService := services.NewArchiveService(archiveRepo, auditRepo, providerFactory)

	// Initialize batch queue
	batchQueue := queue.NewBatchQueue(
		queue.NewMemoryJobStore(),
		imagingService.ProcessFile,
		cfg.Pipeline.MaxConcurrentFiles,
	)
	batchQueue.InFlight = pipelineMetrics.JobsInFlight
	defer batchQueue.Close()

	// Proactive cache sweep alongside lazy read-time expiry
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go func() {
		ticker := time.NewTicker(cfg.Pipeline.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if evicted := imagingService.SweepRenderedCache(sweepCtx); evicted > 0 {
					log.Debug().Int("evicted", evicted).Msg("Rendered cache swept")
				}
			case <-sweepCtx.Done():
				return
			}
		}
	}()

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler()
	imagingHandler := handlers.NewImagingHandler(imagingService, batchQueue)
	managementHandler := handlers.NewManagementHandler(archiveService)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health endpoints (no authentication required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	if cfg.Metrics.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	// Pipeline and management API
	r.Route("/api/v1", func(r chi.Router) {
		// Ad-hoc connection testing carries its own credentials, no
		// tenant required
		r.Post("/archives/test", managementHandler.TestConnection)

		r.Group(func(r chi.Router) {
			r.Use(middleware.TenantID)

			// Image ingestion and retrieval
			r.Post("/images", imagingHandler.UploadImage)
			r.Post("/images/batch", imagingHandler.SubmitBatch)
			r.Get("/images", imagingHandler.ListImages)
			r.Get("/images/{id}", imagingHandler.GetImage)
			r.Get("/images/{id}/rendered", imagingHandler.GetRenderedImage)
			r.Get("/images/{id}/original", imagingHandler.DownloadOriginal)

			// Batch jobs
			r.Get("/jobs/{id}", imagingHandler.GetJobStatus)
			r.Delete("/jobs/{id}", imagingHandler.CancelJob)

			// Archive configuration
			r.Post("/archives", managementHandler.CreateArchiveConfig)
			r.Get("/archives", managementHandler.GetArchiveConfigs)
			r.Get("/archives/query", managementHandler.QueryArchive)
			r.Get("/archives/{id}", managementHandler.GetArchiveConfig)
			r.Delete("/archives/{id}", managementHandler.DeleteArchiveConfig)
			r.Post("/archives/{id}/default", managementHandler.SetDefaultArchive)
			r.Post("/archives/{id}/test", managementHandler.TestConfiguredConnection)

			// Routing rules
			r.Post("/routing-rules", managementHandler.CreateRoutingRule)
			r.Get("/routing-rules", managementHandler.GetRoutingRules)
			r.Delete("/routing-rules/{id}", managementHandler.DeleteRoutingRule)
		})
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
