package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-study-assistant/docs"
	"github.com/tbourn/go-study-assistant/internal/config"
	httpapi "github.com/tbourn/go-study-assistant/internal/http"
	"github.com/tbourn/go-study-assistant/internal/llm"
	"github.com/tbourn/go-study-assistant/internal/observability"
	"github.com/tbourn/go-study-assistant/internal/repo"
	"github.com/tbourn/go-study-assistant/internal/storage"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := openDB(cfg.DBPath)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	objects, err := storage.Open(ctx, storageOptions(cfg.Storage))
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	backend, err := newBackend(cfg.LLM, "")
	if err != nil {
		return err
	}
	if cfg.LLM.APIKey == "" {
		log.Warn().Msg("GEMINI_API_KEY is empty; chat turns will fail with invalid_credentials")
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{DB: db, Objects: objects, LLM: backend}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("store_driver", cfg.StoreDriver).
			Str("storage_driver", cfg.Storage.Driver).
			Str("model", backend.Model()).
			Str("version", version).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openDB opens the SQLite file, creating its directory, and migrates it.
func openDB(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("db dir: %w", err)
		}
	}
	db, err := repo.OpenSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func storageOptions(s config.StorageConfig) storage.Options {
	return storage.Options{
		Driver:    s.Driver,
		UploadDir: s.UploadDir,
		Minio: storage.MinioOptions{
			Endpoint:  s.Minio.Endpoint,
			AccessKey: s.Minio.AccessKey,
			SecretKey: s.Minio.SecretKey,
			Bucket:    s.Minio.Bucket,
			UseSSL:    s.Minio.UseSSL,
		},
		S3: storage.S3Options{
			Region:    s.S3.Region,
			Bucket:    s.S3.Bucket,
			Prefix:    s.S3.Prefix,
			Endpoint:  s.S3.Endpoint,
			PathStyle: s.S3.PathStyle,
			SSE:       s.S3.SSE,
			KMSKeyID:  s.S3.KMSKeyID,
		},
	}
}

// newBackend builds the Gemini client; apiKey overrides the configured key
// when non-empty.
func newBackend(c config.LLMConfig, apiKey string) (*llm.Client, error) {
	client, err := llm.New(llm.Options{
		BaseURL:      c.BaseURL,
		Model:        c.Model,
		APIKey:       firstKey(apiKey, c.APIKey),
		Timeout:      c.Timeout,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}
	return client, nil
}
