package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"admin-payments/internal/config"
	"admin-payments/internal/server"
)

func main() {
	cfg := config.Load()

	logrus.SetLevel(cfg.Level())
	if cfg.IsProduction() {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	serverInstance, port, err := server.StartServer(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to start server")
	}

	logrus.WithField("port", port).Info("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := serverInstance.Stop(ctx); err != nil {
		logrus.WithError(err).Error("Server shutdown failed")
		os.Exit(1)
	}

	logrus.Info("Server stopped")
}
