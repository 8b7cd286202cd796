package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/jspeir/arenaclient/internal/config"
	"github.com/jspeir/arenaclient/internal/httpapi"
	"github.com/jspeir/arenaclient/internal/session"
	"github.com/jspeir/arenaclient/internal/transport"
)

func main() {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	tr, err := transport.Dial(dialCtx, cfg.ServerURL, cfg.SendTimeout, logger)
	cancel()
	if err != nil {
		logger.Fatal("connect failed", zap.String("url", cfg.ServerURL), zap.Error(err))
	}

	// The session outlives the signal context so the farewell message can
	// still go out during shutdown.
	s := session.New(context.Background(), tr, logger)

	if _, err := s.SetSpeed(ctx, cfg.PlaybackSpeed); err != nil {
		logger.Warn("set playback speed", zap.Error(err))
	}

	debug := &http.Server{Addr: cfg.DebugAddr, Handler: httpapi.SetupRoutes(s)}
	go func() {
		logger.Info("debug api listening", zap.String("addr", cfg.DebugAddr))
		if err := debug.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("debug api", zap.Error(err))
		}
	}()

	if err := s.Connect(ctx); err != nil {
		logger.Fatal("connect handshake failed", zap.Error(err))
	}
	logger.Info("session started", zap.String("server", cfg.ServerURL))

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.Disconnect(shutdownCtx); err != nil {
		logger.Warn("disconnect", zap.Error(err))
	}
	s.Shutdown()
	_ = tr.Close()
	_ = debug.Shutdown(shutdownCtx)
	logger.Info("bye")
}

func buildLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	return cfg.Build()
}
