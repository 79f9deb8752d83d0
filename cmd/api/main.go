package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ledgermatch/ledgermatch-backend/internal/adapters/extraction"
	"github.com/ledgermatch/ledgermatch-backend/internal/adapters/qbo"
	"github.com/ledgermatch/ledgermatch-backend/internal/api"
	"github.com/ledgermatch/ledgermatch-backend/internal/application/service"
	"github.com/ledgermatch/ledgermatch-backend/internal/infrastructure/analytics"
	"github.com/ledgermatch/ledgermatch-backend/internal/infrastructure/config"
	"github.com/ledgermatch/ledgermatch-backend/internal/infrastructure/logging"
	"github.com/ledgermatch/ledgermatch-backend/internal/infrastructure/objectstore"
	"github.com/ledgermatch/ledgermatch-backend/internal/infrastructure/storage"
)

func main() {
	cfg := config.LoadOrEnv()
	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "api")

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	objects, err := objectstore.NewGCS(cfg.GCS.Bucket)
	if err != nil {
		logger.Error("failed to initialize object store", "error", err)
		os.Exit(1)
	}

	tracker := analytics.NewTracker()

	gateway, err := qbo.NewClient(qbo.Options{
		ClientID:     cfg.QBO.ClientID,
		ClientSecret: cfg.QBO.ClientSecret,
		RealmID:      cfg.QBO.RealmID,
		RefreshToken: cfg.QBO.RefreshToken,
		Environment:  cfg.QBO.Environment,
		Logger:       logger,
		Tracker:      tracker,
	})
	if err != nil {
		logger.Error("failed to initialize qbo client", "error", err)
		os.Exit(1)
	}

	extractor := extraction.NewGeminiExtractor(cfg.Gemini.Model, logger)

	svc := service.NewReconcileService(cfg, store, gateway, extractor, objects, tracker, logger)
	svc.StartBackgroundCleanup(5 * time.Minute)
	defer svc.StopBackgroundCleanup()

	server := api.NewServer(svc, store, tracker, cfg.Server.AllowedOrigins, logger)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.Handler(),
	}

	go func() {
		logger.Info("api server listening", "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
