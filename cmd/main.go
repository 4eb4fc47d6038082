package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwrk-planet/support-chat/config"
	"github.com/cwrk-planet/support-chat/internal/auth"
	"github.com/cwrk-planet/support-chat/internal/notify"
	"github.com/cwrk-planet/support-chat/internal/postgres"
	"github.com/cwrk-planet/support-chat/internal/presence"
	"github.com/cwrk-planet/support-chat/internal/service"
	"github.com/cwrk-planet/support-chat/internal/storage"
	httpx "github.com/cwrk-planet/support-chat/internal/transport/http"
	"github.com/cwrk-planet/support-chat/internal/transport/ws"
	"github.com/cwrk-planet/support-chat/pkg/logger"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.Env(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting support-chat",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	// --- postgres ---
	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer db.Close()

	// --- presence: Redis, без адреса — in-memory (dev) ---
	var presenceStore presence.Store
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		presenceStore = presence.NewRedisStore(rdb, cfg.PresenceLeaseTTL(), cfg.PresenceOfflineTTL())
	} else {
		slog.Warn("redis.addr empty, using in-memory presence")
		presenceStore = presence.NewMemory(cfg.PresenceLeaseTTL(), cfg.PresenceOfflineTTL())
	}

	// --- repos ---
	convRepo := postgres.NewConversationRepository(db.Pool)
	msgRepo := postgres.NewMessageRepository(db.Pool)
	notifRepo := postgres.NewNotificationRepository(db.Pool)
	userRepo := postgres.NewUserRepository(db.Pool)

	// --- services ---
	convSvc := service.NewConversationService(convRepo, userRepo)
	chatSvc := service.NewChatService(msgRepo, cfg.Chat.MaxMessageLen)
	notifSvc := service.NewNotificationService(notifRepo)
	userSvc := service.NewUserService(userRepo)

	// --- nats (опционально) ---
	var sink notify.Sink
	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL)
		if err != nil {
			log.Fatalf("nats: %v", err)
		}
		defer nc.Close()
		sink = notify.NewNATSSink(nc)
	}

	notifier := notify.New(notifSvc, sink, cfg.Chat.NotifyWorkers, cfg.Chat.NotifyQueue)
	notifier.Start(ctx)
	defer notifier.Stop()

	// --- storage (опционально) ---
	var store *storage.Manager
	if cfg.Storage.Endpoint != "" {
		store, err = storage.New(cfg.Storage.Endpoint, cfg.Storage.AccessKey,
			cfg.Storage.SecretKey, cfg.Storage.Bucket, cfg.Storage.UseSSL, cfg.StorageSignTTL())
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
	}

	// --- auth ---
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret)

	// --- WS Hub & Server ---
	hub := ws.NewHub()
	wsServer := ws.NewServer(hub, verifier, convSvc, chatSvc, userSvc, presenceStore, notifier)

	// --- HTTP ---
	handler := httpx.NewHandler(convSvc, chatSvc, notifSvc, userSvc, presenceStore, store)
	router := httpx.NewRouter(handler, verifier, wsServer)
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
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
	slog.Info("stopped")
}
