package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/api"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/config"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/cache"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/database"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/metrics"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/notifier"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/repository"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/service"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/storage"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/telemetry"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	serverPort      int
	gracefulTimeout int
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Starts the manage service API server that handles entry status
ingestion and queries, report file storage, and notification relay.

The server respects the configuration in config.yaml or specified via the
--config flag. It will gracefully shut down on receiving SIGINT or SIGTERM.`,
	Run: func(cmd *cobra.Command, args []string) {
		startServer()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVar(&serverPort, "port", 0, "Server port (overrides config file)")
	serveCmd.Flags().IntVar(&gracefulTimeout, "graceful-timeout", 30, "Graceful shutdown timeout in seconds")
}

// startServer initializes and starts the API server
func startServer() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if serverPort > 0 {
		cfg.Server.Port = serverPort
	}

	log.WithFields(logrus.Fields{
		"port":             cfg.Server.Port,
		"newrelic_enabled": cfg.NewRelic.Enabled,
	}).Info("Initializing service components...")

	// Connect to the database with retry logic
	var db database.DB
	maxRetries := 5
	retryInterval := time.Second

	for i := 0; i < maxRetries; i++ {
		log.WithField("attempt", i+1).Info("Connecting to database...")
		db, err = database.Connect(cfg.Database)
		if err == nil {
			break
		}

		log.WithFields(logrus.Fields{
			"error":         err.Error(),
			"retry_attempt": i + 1,
			"max_retries":   maxRetries,
		}).Error("Failed to connect to database, retrying...")

		if i < maxRetries-1 {
			time.Sleep(retryInterval)
			retryInterval *= 2
		}
	}
	if err != nil {
		log.Fatalf("Failed to connect to database after %d attempts: %v", maxRetries, err)
	}

	log.Info("Successfully connected to database")
	defer func() {
		log.Info("Closing database connection...")
		if err := db.Close(); err != nil {
			log.WithField("error", err.Error()).Error("Error closing database connection")
		}
	}()

	// Redis is used as a read-through cache for report endpoint lookups.
	// The service works without it.
	log.Info("Connecting to Redis...")
	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Warnf("Failed to connect to Redis, continuing without caching: %v", err)
		redisClient = nil
	} else {
		defer func() {
			log.Info("Closing Redis connection...")
			if err := redisClient.Close(); err != nil {
				log.WithField("error", err.Error()).Error("Error closing Redis connection")
			}
		}()
	}

	// Report blob store
	var blobs storage.BlobStore
	if cfg.Storage.BucketName != "" {
		log.Info("Initializing report blob store...")
		blobs, err = storage.NewS3Store(context.Background(), cfg.Storage)
		if err != nil {
			log.Fatalf("Failed to initialize blob store: %v", err)
		}
	} else {
		log.Warn("No bucket configured, report endpoints will reject requests")
	}

	// New Relic
	nrApp, err := telemetry.InitNewRelic(cfg.NewRelic)
	if err != nil {
		log.Warnf("Failed to initialize New Relic: %v", err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	log.Info("Initializing repositories...")
	repo := repository.NewRepository(db)

	notifyClient := notifier.NewClient(
		cfg.Notify.URL,
		time.Duration(cfg.Notify.TimeoutSeconds)*time.Second,
		log,
	)

	log.Info("Initializing service layer...")
	svc, err := service.NewService(service.ServiceConfig{
		Repository: repo,
		BlobStore:  blobs,
		Notifier:   notifyClient,
		Cache:      redisClient,
		Metrics:    m,
		Config:     cfg,
		Logger:     log,
	})
	if err != nil {
		log.Fatalf("Failed to initialize service: %v", err)
	}

	log.Info("Initializing API server...")
	server := api.NewServer(cfg, log, nrApp, m, svc)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.WithField("port", cfg.Server.Port).Info("Starting server...")
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	sig := <-stop
	log.Infof("Received signal %s, shutting down gracefully...", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(gracefulTimeout)*time.Second)
	defer cancel()

	log.Info("Shutting down HTTP server...")
	if err := server.Shutdown(ctx); err != nil {
		log.Warnf("Server shutdown error: %v", err)
	}

	log.Info("Server shutdown complete")
}
