package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"sphere-cms/internal/api"
	"sphere-cms/internal/auth"
	"sphere-cms/internal/cms"
	"sphere-cms/internal/config"
	"sphere-cms/internal/db"
	"sphere-cms/internal/gallery"
	"sphere-cms/internal/logger"
	"sphere-cms/internal/storage"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and keep the sphere gallery in sync",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger.Banner(version)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	if err := database.ApplyStoredConfig(cfg); err != nil {
		return fmt.Errorf("load stored config: %w", err)
	}

	logger.Section("Storage")
	bucket, local, err := openBucket(cfg.Storage)
	if err != nil {
		return err
	}
	cached := storage.NewCachedLister(bucket, cfg.GetListCacheTTL())

	gal, err := gallery.New(cached, cfg.Sphere.Radius)
	if err != nil {
		return err
	}
	if snap, err := gal.Refresh(ctx); err != nil {
		logger.Warn("Gallery", err.Error())
	} else {
		logger.Stats("Images", len(snap.URLs))
	}
	if local != nil {
		go func() {
			if err := gal.Watch(ctx, local.Dir()); err != nil {
				logger.Warn("Gallery", fmt.Sprintf("watcher stopped: %v", err))
			}
		}()
	} else {
		go gal.Poll(ctx, cfg.GetPollInterval())
	}

	admin := auth.NewAdmin(cfg.Auth.AdminPassword, cfg.GetSessionTTL(), auth.NewSessionStore(database.SqlDB()))
	if !admin.Enabled() {
		logger.Warn("AUTH", "No admin password set; admin routes are disabled")
	}

	srv := api.NewServer(cfg, database, cms.NewService(database, cached), gal, admin)
	if local != nil {
		srv.ServeFiles(local)
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Server(cfg.Server.Addr)
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Server", "Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// openBucket builds the configured backend. local is non-nil only for the
// local backend.
func openBucket(sc config.StorageConfig) (storage.Bucket, *storage.LocalBucket, error) {
	switch sc.Backend {
	case "remote":
		logger.Info("Storage", fmt.Sprintf("Remote bucket %q at %s", sc.Bucket, sc.URL))
		return storage.NewRemoteBucket(sc.URL, sc.Bucket, sc.APIKey), nil, nil
	default:
		local, err := storage.NewLocalBucket(sc.Dir, sc.PublicURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open local bucket: %w", err)
		}
		logger.Info("Storage", fmt.Sprintf("Local bucket at %s", sc.Dir))
		return local, local, nil
	}
}
