package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"postboard/internal/api"
	"postboard/internal/auth"
	"postboard/internal/blob"
	"postboard/internal/config"
	"postboard/internal/session"
	"postboard/internal/store"
	"postboard/internal/store/mongo"
	"postboard/internal/store/sqlite"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting server", "database", cfg.Database.Driver, "storage", cfg.Storage.Driver)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	st, err := openStore(startupCtx, cfg.Database)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer st.Close()
	slog.Info("database opened", "driver", cfg.Database.Driver)

	backend, err := openBlobBackend(startupCtx, cfg.Storage)
	if err != nil {
		slog.Error("failed to initialize blob storage", "error", err)
		os.Exit(1)
	}
	blobService, err := blob.NewService(backend, cfg.Storage.UploadMaxBytes)
	if err != nil {
		slog.Error("failed to initialize blob storage", "error", err)
		os.Exit(1)
	}
	slog.Info("blob storage initialized", "driver", cfg.Storage.Driver, "upload_max_bytes", cfg.Storage.UploadMaxBytes)

	tokens := auth.NewTokenIssuer(
		cfg.Auth.AccessTokenSecret,
		cfg.Auth.RefreshTokenSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)

	// Left as a nil interface when Google sign-in is not configured.
	var identityProvider session.IdentityProvider
	if cfg.Google.ClientID != "" {
		google := auth.NewGoogleProvider(auth.GoogleConfig{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
			TokenURL:     cfg.Google.TokenURL,
			JWKSURL:      cfg.Google.JWKSURL,
		})
		defer google.Close()
		identityProvider = google
		slog.Info("google sign-in enabled")
	}

	sessions := session.NewService(st.Users(), tokens, identityProvider, cfg.Auth.BcryptCost)
	server := api.NewServer(cfg, st, sessions, tokens, blobService)

	addr := cfg.Addr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", addr, "base_url", cfg.Server.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return sqlite.Open(cfg.Path)
	case config.DriverMongo:
		return mongo.New(ctx, cfg.URI)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func openBlobBackend(ctx context.Context, cfg config.StorageConfig) (blob.Backend, error) {
	switch cfg.Driver {
	case config.StorageLocal:
		return blob.NewDiskBackend(cfg.BlobRoot)
	case config.StorageMinio:
		return blob.NewMinioBackend(ctx, blob.MinioConfig{
			Endpoint:  cfg.Minio.Endpoint,
			Bucket:    cfg.Minio.Bucket,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
