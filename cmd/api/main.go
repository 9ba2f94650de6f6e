//	@title			Document Gateway API
//	@version		1.0
//	@description	List, upload, download, delete and presign documents in a single object-storage bucket.
//
//	@host		localhost:8080
//	@BasePath	/

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/radif/docgateway/internal/config"
	"github.com/radif/docgateway/internal/document"
	"github.com/radif/docgateway/internal/logging"
	"github.com/radif/docgateway/internal/server"
	"github.com/radif/docgateway/internal/storage"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "docgateway",
		Short:        "HTTP gateway over a single object-storage bucket",
		SilenceUsage: true,
		RunE:         runServe,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP server",
			Args:  cobra.NoArgs,
			RunE:  runServe,
		},
		newPresignCmd(),
		&cobra.Command{
			Use:   "list",
			Short: "Print every document key in the bucket",
			Args:  cobra.NoArgs,
			RunE:  runList,
		},
	)
	return root
}

func newPresignCmd() *cobra.Command {
	var expiry time.Duration
	cmd := &cobra.Command{
		Use:   "presign KEY",
		Short: "Print a presigned download link for KEY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			if expiry <= 0 {
				expiry = cfg.PresignExpiry
			}
			svc := document.NewService(store, expiry)

			link, err := svc.PresignedURL(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), link.URL)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", link.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().DurationVar(&expiry, "expiry", 0, "link lifetime (defaults to PRESIGN_EXPIRY)")
	return cmd
}

func runList(cmd *cobra.Command, _ []string) error {
	cfg, store, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	svc := document.NewService(store, cfg.PresignExpiry)

	keys, err := svc.List(cmd.Context())
	if err != nil {
		return err
	}
	for _, key := range keys {
		fmt.Fprintln(cmd.OutOrStdout(), key)
	}
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, store, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	svc := document.NewService(store, cfg.PresignExpiry)

	var registry *prometheus.Registry
	if cfg.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	handler := server.New(document.NewHandler(svc), server.Options{
		Registry: registry,
		Swagger:  !cfg.IsProduction(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", srv.Addr, "env", cfg.AppEnv, "bucket", cfg.StorageBucket, "driver", cfg.StorageDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// bootstrap loads configuration, installs the logger and opens the store.
func bootstrap(ctx context.Context) (*config.Config, storage.Storage, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("object storage init failed: %w", err)
	}
	return cfg, store, nil
}

func openStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageDriver {
	case "s3":
		return storage.NewS3Storage(ctx, storage.S3Config{
			Endpoint:     cfg.StorageEndpoint,
			AccessKey:    cfg.StorageAccessKey,
			SecretKey:    cfg.StorageSecretKey,
			Bucket:       cfg.StorageBucket,
			Region:       cfg.StorageRegion,
			UseSSL:       cfg.StorageUseSSL,
			CreateBucket: cfg.StorageCreateBucket,
		})
	case "memory":
		return storage.NewMemoryStorage(cfg.StorageBucket, ""), nil
	default:
		return storage.NewMinioStorage(ctx, storage.MinioConfig{
			Endpoint:     cfg.StorageEndpoint,
			AccessKey:    cfg.StorageAccessKey,
			SecretKey:    cfg.StorageSecretKey,
			Bucket:       cfg.StorageBucket,
			Region:       cfg.StorageRegion,
			UseSSL:       cfg.StorageUseSSL,
			CreateBucket: cfg.StorageCreateBucket,
		})
	}
}
