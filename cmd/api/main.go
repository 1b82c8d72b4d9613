package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/advisorhq/voicebridge/internal/config"
	"github.com/advisorhq/voicebridge/internal/database"
	"github.com/advisorhq/voicebridge/internal/domains/call"
	nominationrepo "github.com/advisorhq/voicebridge/internal/repository/nomination"
	"github.com/advisorhq/voicebridge/internal/server"
	"github.com/advisorhq/voicebridge/pkg/Logger"
)

// Entry point for the call-bridge server. Loads configuration, wires the
// persistence collaborators and the bridge, and serves until a shutdown
// signal; on shutdown every live agent connection is force-closed before
// the process exits.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := Logger.New(cfg.Debug)
	logger.Info("Logger initialized")

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.MigrateDB(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	rc, err := database.NewRedis(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}

	store := nominationrepo.NewGormNominationRepo(db, rc)
	notifier := nominationrepo.NewRedisNotifier(rc, logger)
	registry := call.NewRegistry(logger)
	bridge := call.NewBridge(cfg, logger, store, notifier, registry)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	server.InitializeRoutes(router, server.NewServerDependencies(logger, bridge))

	port := cfg.Port
	if port == 0 {
		port = 8080
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router.Handler(),
	}
	go func() {
		logger.Infof("Listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server exiting: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// No vendor connection may be left half-open.
	bridge.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Shutdown err %v", err)
	}
	logger.Info("Shutdown system")
}
