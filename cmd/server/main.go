package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "boxrental-backend/internal/api/grpc"
	httpapi "boxrental-backend/internal/api/http"
	"boxrental-backend/internal/app"
	"boxrental-backend/internal/config"
	"boxrental-backend/internal/logger"
	"boxrental-backend/internal/security"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Box Rental Backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "http", cfg.GetHTTPAddress(), "grpc", cfg.GetGRPCAddress(), "store", cfg.Store.Type)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize engine
	engine, err := app.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize engine", "error", err)
		log.Fatalf("Failed to initialize engine: %v", err)
	}
	defer engine.Close()

	// Initialize Security
	tokenManager := security.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.AccessTokenTTL())

	// Set up gRPC server
	lis, err := net.Listen("tcp", cfg.GetGRPCAddress())
	if err != nil {
		logger.Error("Failed to listen", "error", err, "address", cfg.GetGRPCAddress())
		log.Fatalf("Failed to listen: %v", err)
	}
	grpcServer := api.NewServer(api.NewRentalHandler(engine.Service), api.NewInventoryHandler(engine.Service), tokenManager)

	// Set up HTTP server
	httpServer := &http.Server{
		Addr:              cfg.GetHTTPAddress(),
		Handler:           httpapi.NewRouter(engine.Service, engine.Service, tokenManager, cfg.Server.TrustProxy),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("gRPC server listening", "address", cfg.GetGRPCAddress())
		errCh <- grpcServer.Serve(lis)
	}()
	go func() {
		logger.Info("HTTP server listening", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go sweepLimiter(ctx, engine)

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		logger.Error("Server error", "error", err)
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
	grpcServer.GracefulStop()
	logger.Info("Servers stopped. Goodbye!")
}

// sweepLimiter drops rate limit state for clients that went quiet.
func sweepLimiter(ctx context.Context, engine *app.Engine) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := engine.Limiter.Sweep(30 * time.Minute); n > 0 {
				logger.Debug("Swept idle rate limit entries", "count", n)
			}
		}
	}
}
