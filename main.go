package main

import (
	"context"
	"log"

	"voice-gateway/internal/bootstrap"
	"voice-gateway/internal/config"
	"voice-gateway/internal/observability"
	"voice-gateway/internal/server"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %s", err)
	}

	logger := observability.NewLogger()

	deps, err := bootstrap.Initialize(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialize dependencies: %s", err)
	}

	srv := server.New(cfg, deps, logger)
	srv.Setup()

	if err := srv.Start(ctx); err != nil {
		log.Fatalf("failed to start server: %s", err)
	}

	if err := srv.WaitForShutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %s", err)
	}
}
