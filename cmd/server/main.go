// File Explorer Server
//
// Features:
// - Sandboxed local listing, content, delete and rename
// - Read-only remote drive (command, http gateway or S3)
// - Starred paths (Postgres or JSON file)
// - SSE change feed backed by a filesystem watcher
// - Prometheus metrics, structured logging (zap), per-IP rate limiting
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dabendan2/file-explorer/internal/api"
	"github.com/dabendan2/file-explorer/internal/config"
	"github.com/dabendan2/file-explorer/internal/events"
	"github.com/dabendan2/file-explorer/internal/logging"
	"github.com/dabendan2/file-explorer/internal/metrics"
	"github.com/dabendan2/file-explorer/internal/ratelimit"
	"github.com/dabendan2/file-explorer/internal/stars"
	"github.com/dabendan2/file-explorer/internal/storage"
	"github.com/dabendan2/file-explorer/internal/storage/local"
	"github.com/dabendan2/file-explorer/internal/storage/remote"
	s3storage "github.com/dabendan2/file-explorer/internal/storage/s3"
	"github.com/dabendan2/file-explorer/internal/version"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	// Initialize structured logging
	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	info := version.Get()
	logging.Info("file explorer starting...",
		zap.String("listen", cfg.Addr()),
		zap.String("metrics", cfg.MetricsAddr),
		zap.String("base_path", cfg.BasePath),
		zap.String("build", info.BuildID))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Sandbox root
	lb, err := local.New(local.Config{
		RootPath:   cfg.Root(),
		CreateDirs: cfg.CreateRoot,
	})
	if err != nil {
		logging.Fatal("sandbox root init failed", zap.Error(err))
	}
	logging.Info("sandbox root ready", zap.String("root", lb.Root().Path()))

	// Remote drive (optional)
	remoteBackend, err := newRemote(ctx, cfg)
	if err != nil {
		logging.Fatal("remote backend init failed", zap.Error(err))
	}
	if remoteBackend != nil {
		logging.Info("remote backend configured", zap.String("driver", remoteBackend.Type()))
	}
	router := storage.NewRouter(lb, remoteBackend)

	// Star store
	starStore, err := newStarStore(ctx, cfg)
	if err != nil {
		logging.Fatal("star store init failed", zap.Error(err))
	}
	defer starStore.Close()

	// SSE broadcaster and filesystem watcher
	broadcaster := events.NewBroadcaster()
	if cfg.WatchRoot {
		watcher, err := events.NewWatcher(lb.Root(), broadcaster)
		if err != nil {
			logging.Error("filesystem watcher unavailable", zap.Error(err))
		} else if err := watcher.Start(); err != nil {
			logging.Error("filesystem watcher failed to start", zap.Error(err))
		} else {
			defer watcher.Stop()
			logging.Info("filesystem watcher started")
		}
	}

	// Rate limiter
	var limiter *ratelimit.Limiter
	if rl := ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitBurst); rl.Enabled() {
		limiter = rl
		go limiter.RunCleanup(ctx, 10*time.Minute, time.Hour)
		logging.Info("rate limiter enabled",
			zap.Float64("rps", cfg.RateLimitRPS),
			zap.Int("burst", cfg.RateLimitBurst))
	}

	srv := api.NewServer(router, lb, starStore, api.Options{
		BasePath:    cfg.BasePath,
		ExposeRoot:  cfg.ExposeRoot,
		Limiter:     limiter,
		Broadcaster: broadcaster,
	})

	// Start metrics server
	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: metrics.Handler(),
		}
		go func() {
			logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
			if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				logging.Error("metrics server error", zap.Error(err))
			}
		}()
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		cancel()

		shutdownCtx, done := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer done()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logging.Warn("graceful shutdown incomplete", zap.Error(err))
			httpServer.Close()
		}
		if metricsServer != nil {
			metricsServer.Close()
		}
	}()

	logging.Info("server listening (HTTP)", zap.String("addr", cfg.Addr()))
	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logging.Fatal("server error", zap.Error(err))
	}
}

// newRemote builds the configured remote driver, or nil when none is set.
func newRemote(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	switch cfg.RemoteDriver {
	case config.DriverCommand:
		return remote.NewCommand(remote.CommandConfig{
			ListCommand: cfg.ListCommand(),
			ReadCommand: cfg.ReadCommand(),
			Timeout:     cfg.RemoteTimeout,
		})
	case config.DriverHTTP:
		return remote.NewHTTP(remote.HTTPConfig{
			BaseURL: cfg.RemoteURL,
			Timeout: cfg.RemoteTimeout,
		})
	case config.DriverS3:
		return s3storage.New(ctx, s3storage.Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
			Prefix:    cfg.S3Prefix,
		})
	default:
		return nil, nil
	}
}

// newStarStore picks Postgres when DATABASE_URL is set, otherwise a JSON
// file (or memory when STARS_FILE is empty).
func newStarStore(ctx context.Context, cfg *config.Config) (stars.Store, error) {
	if cfg.DatabaseURL != "" {
		logging.Info("connecting to PostgreSQL...")
		return stars.NewPostgresStore(ctx, cfg.DatabaseURL)
	}
	if cfg.StarsFile == "" {
		logging.Warn("STARS_FILE not set, stars are kept in memory")
	}
	return stars.NewFileStore(cfg.StarsFile)
}
