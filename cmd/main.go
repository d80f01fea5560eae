package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"searchgateway/internal/handlers"
	"searchgateway/internal/logger"
	"searchgateway/internal/models"
	"searchgateway/internal/search"
	"searchgateway/internal/server"

	"github.com/spf13/viper"
)

func main() {
	// load config.yml first so the log level can come from it
	if err := loadConfig(); err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	log := logger.Get(viper.GetString("log_level"))

	// datasource settings
	settings, err := loadSettings()
	if err != nil {
		log.Fatalw("invalid datasource settings", "err", err)
	}

	// wire dependencies
	gateway := search.NewGateway(settings, nil, log)
	apiHandler := handlers.NewHandler(gateway, log)

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(srv, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

// loadSettings builds and validates the per-instance datasource settings.
func loadSettings() (*models.Settings, error) {
	var settings models.Settings
	if err := viper.UnmarshalKey("cribl", &settings); err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// allow in-flight query batches to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
