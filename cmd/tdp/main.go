// Package main is the entry point for the tdp blog server. It loads
// configuration, connects to services, sets up routing, and starts the
// HTTP server with graceful shutdown support.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/poer2023/tdp/internal/cache"
	"github.com/poer2023/tdp/internal/config"
	"github.com/poer2023/tdp/internal/database"
	"github.com/poer2023/tdp/internal/handlers"
	"github.com/poer2023/tdp/internal/reconcile"
	"github.com/poer2023/tdp/internal/router"
	"github.com/poer2023/tdp/internal/session"
	"github.com/poer2023/tdp/internal/storage"
	"github.com/poer2023/tdp/internal/store"
	"github.com/poer2023/tdp/internal/transfer"
)

func main() {
	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Structured logger: text in development, JSON in production.
	var handler slog.Handler
	if cfg.IsDev() {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(handler))

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
	)

	// Connect to PostgreSQL.
	db, err := database.Connect(cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run pending migrations.
	if err := database.Migrate(db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Seed development data (no-op if data already exists).
	if cfg.IsDev() {
		if err := database.Seed(db); err != nil {
			slog.Error("failed to seed database", "error", err)
			os.Exit(1)
		}
	}

	// Connect to Valkey (sessions, response cache, import parking).
	valkeyClient, err := cache.ConnectValkey(cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
	if err != nil {
		slog.Error("failed to connect to valkey", "error", err)
		os.Exit(1)
	}
	defer valkeyClient.Close()

	// Session cookies are Secure (HTTPS-only) outside development.
	sessionStore := session.NewStore(valkeyClient, !cfg.IsDev())

	// Data stores.
	userStore := store.NewUserStore(db)
	postStore := store.NewPostStore(db)
	subscriberStore := store.NewSubscriberStore(db)
	mediaStore := store.NewMediaStore(db)

	// S3-compatible object storage (optional; the app works without it,
	// media uploads just return 503).
	storageClient, err := storage.New(
		cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey,
		cfg.S3Bucket, cfg.S3PublicURL,
	)
	if err != nil {
		slog.Error("failed to initialize S3 storage", "error", err)
		os.Exit(1)
	}
	if storageClient != nil {
		slog.Info("s3 storage connected", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)
	} else {
		slog.Warn("s3 storage not configured, media uploads disabled")
	}

	// Valkey-backed caches.
	postCache := cache.NewPostCache(valkeyClient, cache.DefaultPostTTL)
	importSessions := cache.NewImportSessions(valkeyClient, cfg.ImportSessionTTL)

	// The import/export pipeline.
	engine := reconcile.New(postStore, postStore)
	exporter := transfer.NewExporter(postStore)
	importer := transfer.NewImporter(engine, cfg.ImportMaxDocBytes)

	// Handler groups.
	deps := router.Deps{
		Sessions: sessionStore,
		Auth:     handlers.NewAuth(sessionStore, userStore),
		Admin:    handlers.NewAdmin(postStore, subscriberStore, postCache),
		Public:   handlers.NewPublic(postStore, subscriberStore, postCache),
		Transfer: handlers.NewTransfer(exporter, importer, importSessions, postCache),

		SecureCookies: !cfg.IsDev(),
	}
	if storageClient != nil {
		deps.Media = handlers.NewMedia(mediaStore, storageClient)
	}

	r := router.New(deps)

	// WriteTimeout must accommodate archive exports and media uploads.
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start the server in a goroutine so we can listen for shutdown signals.
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	// Give active requests up to 30 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}
