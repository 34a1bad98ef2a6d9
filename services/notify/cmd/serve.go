package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/h-mizumoto/Dynamic-Data-Upload/services/notify/api"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/notify/config"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/notify/internal/relay"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/notify/internal/service"

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
	Long: `Starts the notify service API server that receives status
notifications from the manage service and forwards them to the local-data
consumer configured via local.url and local.api_key.`,
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

	// Surface missing consumer settings at startup; requests will still be
	// rejected per call with a configuration error.
	if cfg.Local.URL == "" {
		log.Warn("local.url is not configured, notifications will be rejected")
	}
	if cfg.Local.APIKey == "" {
		log.Warn("local.api_key is not configured, notifications will be rejected")
	}

	relayClient := relay.NewClient(
		cfg.Local.URL,
		cfg.Local.APIKey,
		time.Duration(cfg.Local.TimeoutSeconds)*time.Second,
		log,
	)
	svc := service.NewService(relayClient, cfg, log)

	server := api.NewServer(cfg, log, svc)

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

	if err := server.Shutdown(ctx); err != nil {
		log.Warnf("Server shutdown error: %v", err)
	}

	log.Info("Server shutdown complete")
}
