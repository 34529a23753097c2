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

	"userservice/internal/api"
	"userservice/internal/database"
	"userservice/pkg/factory"
)

const shutdownTimeout = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appFactory, err := factory.NewFactory(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
		os.Exit(1)
	}

	log := appFactory.GetLogger()
	cfg := appFactory.GetConfig()
	cm := appFactory.GetConnectionManager()

	log.Info("Starting user service", map[string]interface{}{"env": cfg.AppEnv, "driver": cfg.Database.Driver})

	checks := map[string]api.Pinger{}
	if cm != nil {
		migrationService := database.NewMigrationService(cm.GetDB(), cm.Driver(), log)
		if err := migrationService.RunMigrations(ctx); err != nil {
			log.Fatal("Failed to apply migrations", map[string]interface{}{"error": err.Error()})
		}
		checks["database"] = cm
	}

	if wm := appFactory.GetWarmUpManager(); wm != nil {
		go wm.ScheduledWarmUp(ctx, cfg.Cache.WarmUpInterval)
	}

	var extra []api.RouteRegistrar
	if c := appFactory.GetCache(); c != nil {
		checks["cache"] = c
		extra = append(extra, api.NewCacheHandler(appFactory.GetCacheManager(), appFactory.GetWarmUpManager(), log))
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.NewRouter(appFactory.GetUserService(), checks, log, extra...),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	go func() {
		log.Info("HTTP server listening", map[string]interface{}{"port": cfg.Server.Port})

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", map[string]interface{}{"error": err.Error()})
	}

	if err := appFactory.Close(shutdownCtx); err != nil {
		log.Error("Resource cleanup failed", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Server stopped", nil)
}
