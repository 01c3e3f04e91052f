package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/yshare/yshare/config"
	"github.com/yshare/yshare/internal/notifier"
	"github.com/yshare/yshare/internal/postgres"
	"github.com/yshare/yshare/internal/service"
	httpx "github.com/yshare/yshare/internal/transport/http"
	"github.com/yshare/yshare/internal/transport/ws"
	"github.com/yshare/yshare/pkg/logger"
	"github.com/yshare/yshare/pkg/msgbroker"

	"github.com/redis/go-redis/v9"
)

func main() {
	// --- config ---
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.Env(cfg.LogEnv),
		Service:   "yshare",
		Version:   "v0.1.0",
		Backend:   logger.Backend(cfg.LogBackend),
		AddSource: cfg.LogSource,
		Debug:     cfg.LogDebug,
	})
	slog.Info("starting yshare server", "env", cfg.LogEnv)

	// --- postgres ---
	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	// --- redis & broker ---
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis: %v", err)
	}
	broker := msgbroker.NewRedisBroker(rdb)

	// --- repos & services ---
	roomRepo := postgres.NewRoomRepository(db.Pool)
	memberRepo := postgres.NewMemberRepository(db.Pool)
	messageRepo := postgres.NewMessageRepository(db.Pool, broker)
	roomSvc := service.NewRoomService(roomRepo, messageRepo)

	// --- WS hub & server ---
	hub := ws.NewHub()
	wsServer := ws.NewServer(hub, roomSvc, memberRepo)

	// --- change notifier ---
	ntf := notifier.New(broker, wsServer, 8)
	if err := ntf.Run(); err != nil {
		log.Fatalf("notifier: %v", err)
	}

	// --- HTTP ---
	handler := httpx.NewHandler(roomSvc)
	router := httpx.NewRouter(handler, wsServer)
	httpSrv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listen", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpSrv.Shutdown(ctxShutdown)
	ntf.Close()
	if err := broker.Close(); err != nil {
		slog.Error("broker close", "err", err)
	}
	if err := rdb.Close(); err != nil {
		slog.Error("redis close", "err", err)
	}
	slog.Info("stopped")
}
