// cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oplift/buyplan/internal/api"
	"github.com/oplift/buyplan/internal/cache"
	"github.com/oplift/buyplan/internal/config"
	"github.com/oplift/buyplan/internal/engine"
	"github.com/oplift/buyplan/internal/repository/postgres"
	"github.com/oplift/buyplan/internal/service"
	"github.com/oplift/buyplan/pkg/logger"
)

func main() {
	cfg := config.Load()

	logger.SetLevel(cfg.Server.Mode)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	resultCache, err := cache.NewResultCache(cfg.Cache)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("failed to connect to cache")
	}

	engineCfg := engine.DefaultConfig()
	engineCfg.VelocityHorizonMonths = cfg.Engine.VelocityHorizonMonths
	engineCfg.ChurnCapWeeks = cfg.Engine.ChurnCapWeeks
	engineCfg.DefaultLeadDays = cfg.Engine.DefaultLeadDays
	engineCfg.ExhaustiveLimit = cfg.Engine.ExhaustiveLimit

	allocationService := service.NewAllocationService(engineCfg, resultCache)

	services := &api.Services{AllocationService: allocationService}

	// Master data is optional; without a database every request must be
	// self-contained.
	if cfg.Database.URL != "" {
		db, err := postgres.Connect(context.Background(), cfg.Database.URL)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()
		services.MasterData = postgres.NewMasterRepository(db)
	}

	router := api.NewRouter(services, cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Log.Info().Msg("server exiting")
}
