package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ageniuscoder/chatsphere/backend/internal/auth"
	"github.com/ageniuscoder/chatsphere/backend/internal/blob"
	"github.com/ageniuscoder/chatsphere/backend/internal/chat"
	"github.com/ageniuscoder/chatsphere/backend/internal/chats"
	"github.com/ageniuscoder/chatsphere/backend/internal/config"
	"github.com/ageniuscoder/chatsphere/backend/internal/messages"
	"github.com/ageniuscoder/chatsphere/backend/internal/metrics"
	"github.com/ageniuscoder/chatsphere/backend/internal/presence"
	"github.com/ageniuscoder/chatsphere/backend/internal/room"
	"github.com/ageniuscoder/chatsphere/backend/internal/session"
	"github.com/ageniuscoder/chatsphere/backend/internal/storage"
	"github.com/ageniuscoder/chatsphere/backend/internal/storage/memory"
	"github.com/ageniuscoder/chatsphere/backend/internal/storage/postgres"
	"github.com/ageniuscoder/chatsphere/backend/internal/storage/sqlite"
	"github.com/ageniuscoder/chatsphere/backend/internal/users"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

type database interface {
	storage.Store
	Migrate() error
}

func openStore(cfg config.Config) (storage.Store, func() error, error) {
	var db database
	var err error
	switch cfg.StoreDriver {
	case "memory":
		return memory.New(), func() error { return nil }, nil
	case "postgres":
		db, err = postgres.New(cfg.PostgresDsn)
	case "sqlite", "":
		db, err = sqlite.New(cfg.SQLITEDsn)
	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	if err != nil {
		return nil, nil, err
	}
	return db, db.Migrate, nil
}

func main() {
	migrate := flag.Bool("migrate", false, "run migrations and exits")
	flag.Parse()
	//config part
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file loaded", "err", err)
	}
	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if cfg.JWTSecret == "" {
		log.Fatalf("JWT_SECRET is required")
	}

	//database handling
	store, migrateFn, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Error loading to database: %v", err)
	}
	defer store.Close()

	if *migrate {
		if err := migrateFn(); err != nil {
			log.Fatalf("Migration failed %v", err)
		}
		slog.Info("Migration Completed")
		return
	}
	// sqlite and memory are usually run without a separate migrate step
	if cfg.StoreDriver != "postgres" {
		if err := migrateFn(); err != nil {
			log.Fatalf("Migration failed %v", err)
		}
	}

	blobs, err := blob.NewDisk(cfg.UploadDir, cfg.UploadBaseURL)
	if err != nil {
		log.Fatalf("Upload dir: %v", err)
	}

	// real-time core
	broadcaster := chat.NewBroadcaster(session.NewRegistry(), room.NewCoordinator(), logger)
	typing := presence.NewSignaler(broadcaster, cfg.TypingTimeout, logger)
	defer typing.Stop()

	engine := messages.NewEngine(store)
	engine.EditWindow = cfg.EditWindow
	engine.DeleteWindow = cfg.DeleteWindow
	svc := messages.NewService(engine, broadcaster, logger)

	hub := chat.NewHub(broadcaster, typing, svc, store, logger, chat.Options{
		SendBuffer:   cfg.WSSendBuffer,
		EventsPerSec: cfg.WSEventsPerSec,
		EventsBurst:  cfg.WSEventsBurst,
	})

	accounts := &users.Service{
		Store:     store,
		JWTSecret: cfg.JWTSecret,
		JWTTTLMin: cfg.JWTTTLMin,
		Online:    hub.Sessions.Online,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) {
		if err := store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	metrics.Register(r)
	if strings.HasPrefix(cfg.UploadBaseURL, "/") {
		r.Static(cfg.UploadBaseURL, cfg.UploadDir)
	}

	api := r.Group("/api")
	users.RegisterPublic(api, accounts)
	// websocket authenticates with its own token lookup
	chat.RegisterWS(api, hub, cfg.JWTSecret)

	protected := api.Group("/", auth.JWTMiddleware(cfg.JWTSecret))
	users.Register(protected, accounts)
	chats.Register(protected, store, hub.Evict)
	messages.Register(protected, svc)
	messages.RegisterUpload(protected, &messages.Uploader{Blobs: blobs, Service: svc, MaxBytes: cfg.UploadMaxBytes})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("ChatSphere listening", "addr", cfg.Addr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown failed", "err", err)
	}
}
