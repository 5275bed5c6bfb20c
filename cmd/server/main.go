package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"

	"github.com/dudu/facegaze/internal/config"
	"github.com/dudu/facegaze/internal/logger"
	"github.com/dudu/facegaze/internal/metrics"
	"github.com/dudu/facegaze/internal/pipeline"
	"github.com/dudu/facegaze/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Config{Level: "info"}).Fatalf("Error loading config: %v", err)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, File: cfg.LogFile})

	p, err := pipeline.New(log, cfg)
	if err != nil {
		log.Fatalf("Error creating pipeline: %v", err)
	}

	stats := metrics.New()

	srv, err := server.NewServer(
		server.WithFiber(server.NewFiber(cfg.RequestLimit)),
		server.WithLogger(log),
		server.WithValidator(validator.New()),
		server.WithSessions(p),
		server.WithMetrics(stats),
		server.WithRateLimit(20, 40),
	)
	if err != nil {
		log.Fatal(err)
	}

	srv.RegisterHandler()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Run(cfg.Port); err != nil {
			log.Fatalf("Error starting server: %v", err)
		}
	}()

	log.Info("Server started successfully")

	<-sigChan
	log.Info("Shutting down server...")

	if err := srv.Shutdown(); err != nil {
		log.WithError(err).Error("server shutdown")
	}
	if err := p.Close(); err != nil {
		log.WithError(err).Error("pipeline close")
	}
}
