package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coachpo/beacon-spear-edge/internal/config"
	"github.com/coachpo/beacon-spear-edge/internal/dispatch"
	"github.com/coachpo/beacon-spear-edge/internal/httpapi"
	"github.com/coachpo/beacon-spear-edge/internal/ingest"
	"github.com/coachpo/beacon-spear-edge/internal/logger"
	"github.com/coachpo/beacon-spear-edge/internal/relay"
	"github.com/coachpo/beacon-spear-edge/internal/routing"
	"github.com/coachpo/beacon-spear-edge/pkg/middleware"
	"github.com/coachpo/beacon-spear-edge/pkg/ratelimit"
)

type App struct {
	config *config.Config
	logger logger.Logger
	router *gin.Engine
	server *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{config: cfg, logger: log}
}

func (a *App) Initialize() error {
	if err := a.initRouter(); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  time.Duration(a.config.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(a.config.Server.WriteTimeoutSeconds) * time.Second,
	}
	return nil
}

func (a *App) initRouter() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(a.logger))
	router.Use(middleware.LoggerMiddleware(a.logger))
	router.Use(middleware.RequestIDMiddleware())

	if a.config.RateLimit.Enabled {
		rlCfg := ratelimit.DefaultConfig()
		if a.config.RateLimit.RPS > 0 {
			rlCfg.RPS = a.config.RateLimit.RPS
		}
		if a.config.RateLimit.Burst > 0 {
			rlCfg.Burst = a.config.RateLimit.Burst
		}
		router.Use(ratelimit.Middleware(rlCfg))
		a.logger.Infow("Rate limiting enabled", "rps", rlCfg.RPS, "burst", rlCfg.Burst)
	}

	ingestHandler, err := a.buildIngestHandler()
	if err != nil {
		return err
	}

	router.GET("/healthz", a.healthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// /api/i is an accepted alias of /api/ingest; both bind the same handler
	// so behavior is identical by construction.
	router.POST("/api/ingest/:endpoint_id", ingestHandler)
	router.POST("/api/i/:endpoint_id", ingestHandler)

	router.HandleMethodNotAllowed = true
	router.NoMethod(httpapi.MethodNotAllowed)
	router.NoRoute(httpapi.NotFound)

	a.router = router
	return nil
}

func (a *App) buildIngestHandler() (gin.HandlerFunc, error) {
	if a.config.Mode == config.ModeFull {
		return relay.New(a.config, a.logger).Handle, nil
	}

	store, err := routing.NewStore(a.config.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize routing store: %w", err)
	}

	var sender dispatch.Sender = dispatch.NewHTTPSender(time.Duration(a.config.Dispatch.TimeoutSeconds) * time.Second)
	if a.config.Dispatch.Breaker.Enabled {
		sender = dispatch.NewBreakerSender(sender, a.config.Dispatch.Breaker)
		a.logger.Infow("Dispatch circuit breaker enabled")
	}

	dispatcher := dispatch.New(sender, a.logger)
	return ingest.NewHandler(store, dispatcher, a.logger).Handle, nil
}

func (a *App) healthz(c *gin.Context) {
	if a.config.Mode == config.ModeLite {
		c.JSON(http.StatusOK, gin.H{"ok": true, "mode": "lite"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Infow("HTTP server listening", "addr", a.server.Addr, "mode", a.config.Mode)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Infow("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.server.Shutdown(shutdownCtx)
}
