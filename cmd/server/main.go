package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BerylCAtieno/market-research-agent/internal/a2a"
	"github.com/BerylCAtieno/market-research-agent/internal/api"
	"github.com/BerylCAtieno/market-research-agent/internal/config"
	"github.com/BerylCAtieno/market-research-agent/internal/gateway"
	"github.com/BerylCAtieno/market-research-agent/internal/logging"
	"github.com/BerylCAtieno/market-research-agent/internal/store"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	// Backend clients are built per request from the caller's X-API-KEY.
	dial := gateway.GeminiDialer(cfg.LLM.DefaultModel)

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery(), a2a.RequestLoggingMiddleware(logger))

	api.NewHandler(dial, cfg.Research, st, logger).Register(router)

	a2aHandler := a2a.NewA2AHandler(dial, cfg.Research, logger)
	router.GET("/.well-known/agent.json", a2aHandler.ServeAgentCard)
	router.POST("/a2a/research", a2aHandler.HandleResearch)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Market Research Agent starting",
			zap.String("port", cfg.Server.Port),
			zap.String("store", cfg.Store.Path),
			zap.String("model", cfg.LLM.DefaultModel),
		)
		logger.Info("endpoints",
			zap.String("rest", "http://localhost:"+cfg.Server.Port+"/api"),
			zap.String("agent_card", "http://localhost:"+cfg.Server.Port+"/.well-known/agent.json"),
			zap.String("a2a", "http://localhost:"+cfg.Server.Port+"/a2a/research"),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
