package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pageza/storefront-assistant/backend/config"
	"github.com/pageza/storefront-assistant/backend/internal/logging"
	"github.com/pageza/storefront-assistant/backend/internal/server"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := logging.New(cfg)

	backends, err := server.Open(context.Background(), cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("[Server] failed to connect backends")
	}

	srv, err := server.New(cfg, backends, logger)
	if err != nil {
		logger.WithError(err).Fatal("[Server] failed to create server")
	}

	// Channel to listen for errors coming from the server
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			logger.WithError(err).Fatal("[Server] server error")
		}
	case sig := <-quit:
		logger.WithField("signal", sig.String()).Info("[Server] shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("[Server] shutdown error")
	}
	logger.Info("[Server] stopped")
}
