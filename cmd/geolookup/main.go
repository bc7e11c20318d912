package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/TomasB/geolookup/internal/config"
	"github.com/TomasB/geolookup/internal/data"
	"github.com/TomasB/geolookup/internal/handler/check"
	geogrpc "github.com/TomasB/geolookup/internal/handler/grpc"
	"github.com/TomasB/geolookup/internal/handler/health"
	"github.com/TomasB/geolookup/internal/handler/lookup"
	"github.com/TomasB/geolookup/internal/handler/middleware"
	"github.com/TomasB/geolookup/internal/resolve"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("service starting", "log_level", cfg.LogLevel.String())

	// Set Gin mode based on log level
	if cfg.LogLevel <= slog.LevelDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Load geolocation databases
	set := data.NewSet(newResolver(cfg))
	if err := set.SetEncoding(cfg.Encoding); err != nil {
		slog.Error("invalid GEOIP_ENCODING", "encoding", cfg.Encoding, "error", err)
		os.Exit(1)
	}
	if err := set.Open(cfg.Databases...); err != nil {
		slog.Error("failed to open databases", "paths", cfg.Databases, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := set.Close(); err != nil {
			slog.Error("failed to close databases", "error", err)
		}
	}()

	slog.Info("databases loaded", "count", set.Len(), "encoding", set.Charset().String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.WatchDatabases {
		watcher, err := data.NewWatcher(set, cfg.WatchDebounce)
		if err != nil {
			slog.Error("failed to watch databases", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := watcher.Run(ctx); err != nil {
				slog.Error("database watcher stopped", "error", err)
			}
		}()
	}

	// Create Gin router
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(gin.Recovery())

	// Register health and metrics endpoints
	healthHandler := health.NewHandler(health.DatabasesLoaded(set.Len))
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Register API endpoints
	checkHandler := check.NewHandler(set)
	api := router.Group("/api/v1")
	{
		api.POST("/check", checkHandler.Check)
		api.GET("/whoami", middleware.Geo(set), middleware.WhoAmI)
		lookup.NewHandler(set).Register(api)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Create gRPC server
	grpcServer := grpc.NewServer()
	geogrpc.Register(grpcServer, geogrpc.NewHandler(set))
	healthServer := grpchealth.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	servingStatus := healthpb.HealthCheckResponse_SERVING
	if healthHandler.Check() != nil {
		servingStatus = healthpb.HealthCheckResponse_NOT_SERVING
	}
	healthServer.SetServingStatus(geogrpc.ServiceName, servingStatus)

	grpcListener, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		slog.Error("failed to listen for gRPC", "port", cfg.GRPCPort, "error", err)
		os.Exit(1)
	}

	// Start servers in goroutines
	go func() {
		slog.Info("service started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()
	go func() {
		slog.Info("gRPC service started", "port", cfg.GRPCPort)
		if err := grpcServer.Serve(grpcListener); err != nil {
			slog.Error("gRPC server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	<-ctx.Done()

	slog.Info("service shutting down")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		grpcServer.Stop()
	}

	slog.Info("service stopped")
}

// newResolver builds the hostname resolver from the configuration.
func newResolver(cfg config.Config) resolve.Resolver {
	var r resolve.Resolver = resolve.NewSystem()
	if cfg.DNSServer != "" {
		r = resolve.NewDNS(cfg.DNSServer, cfg.DNSTimeout)
	}
	if cfg.CacheSize > 0 {
		r = resolve.NewCached(r, cfg.CacheSize, cfg.CacheTTL)
	}
	return r
}
