// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/JakeFAU/loc-announcer/internal/announce"
	"github.com/JakeFAU/loc-announcer/internal/clock/system"
	"github.com/JakeFAU/loc-announcer/internal/config"
	"github.com/JakeFAU/loc-announcer/internal/detector"
	"github.com/JakeFAU/loc-announcer/internal/heartbeat"
	"github.com/JakeFAU/loc-announcer/internal/httpjson"
	"github.com/JakeFAU/loc-announcer/internal/id/uuid"
	"github.com/JakeFAU/loc-announcer/internal/locations"
	"github.com/JakeFAU/loc-announcer/internal/notifier"
	"github.com/JakeFAU/loc-announcer/internal/runner"
	"github.com/JakeFAU/loc-announcer/internal/state"
	"github.com/JakeFAU/loc-announcer/internal/storage"
	"github.com/JakeFAU/loc-announcer/internal/storage/gcs"
	"github.com/JakeFAU/loc-announcer/internal/storage/local"
	"github.com/JakeFAU/loc-announcer/internal/storage/memory"
	"github.com/JakeFAU/loc-announcer/internal/telemetry"
)

// App holds the shared services for one process. Both CLI commands obtain
// their runner from here.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	blobs   storage.BlobStore
	runner  *runner.Exclusive
	closers []func() error
}

// GetLogger returns the root logger.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetConfig returns the configuration the services were built from.
func (a *App) GetConfig() config.Config {
	return a.cfg
}

// GetStorage exposes the blob store holding the seen-state.
func (a *App) GetStorage() storage.BlobStore {
	return a.blobs
}

// GetRunner returns the overlap-guarded announcer run.
func (a *App) GetRunner() runner.Invoker {
	return a.runner
}

// New builds every service from cfg. It fails fast when a provider cannot be
// initialized.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("Initializing application services...")
	a := &App{cfg: cfg, logger: logger}

	exportOpts, err := telemetry.ExporterOptions(cfg.TraceExporter(), os.Stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	tp, err := telemetry.InitTracerProvider(ctx, "locbot", exportOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.closers = append(a.closers, func() error {
		return tp.Shutdown(context.Background())
	})

	blobs, closer, err := newBlobStore(ctx, cfg.Storage, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.blobs = blobs
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	run, err := a.buildRunner()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.runner = runner.NewExclusive(run)

	logger.Info("Application services initialized successfully.")
	return a, nil
}

func newBlobStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (storage.BlobStore, func() error, error) {
	switch cfg.Provider {
	case config.StorageGCS:
		if cfg.GCS.Bucket == "" {
			return nil, nil, fmt.Errorf("storage provider is 'gcs' but storage.gcs.bucket is not set")
		}
		logger.Info("Using GCS storage provider", zap.String("bucket", cfg.GCS.Bucket))
		store, err := gcs.Open(ctx, gcs.Config{Bucket: cfg.GCS.Bucket}, logger.Named("gcs"))
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case config.StorageLocal:
		logger.Info("Using local storage provider", zap.String("base_dir", cfg.Local.BaseDir))
		store, err := local.New(local.Config{BaseDir: cfg.Local.BaseDir})
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	case config.StorageMemory:
		logger.Warn("Using in-memory storage provider. Seen-state is lost on exit.")
		return memory.NewBlobStore(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage provider: %s", cfg.Provider)
	}
}

func (a *App) buildRunner() (*runner.Runner, error) {
	cfg := a.cfg
	client := httpjson.New(httpjson.Config{
		Timeout:   cfg.RequestTimeout(),
		UserAgent: cfg.HTTP.UserAgent,
	}, a.logger.Named("http"))

	source, err := locations.NewSource(client, cfg.Source.URL)
	if err != nil {
		return nil, fmt.Errorf("init source: %w", err)
	}
	seen, err := state.NewStore(a.blobs, cfg.Storage.Object, a.logger.Named("state"))
	if err != nil {
		return nil, fmt.Errorf("init state store: %w", err)
	}
	formatter, err := announce.New(cfg.Announce.Timezone)
	if err != nil {
		return nil, fmt.Errorf("init formatter: %w", err)
	}
	clock := system.New()
	hook, err := notifier.New(client, clock, notifier.Config{
		URL:                 cfg.Webhook.URL,
		Username:            cfg.Webhook.Username,
		AvatarURL:           cfg.Webhook.AvatarURL,
		MaxChars:            cfg.Webhook.MaxChars,
		MaxRateLimitRetries: cfg.Webhook.MaxRateLimitRetries,
		MinInterval:         cfg.Webhook.MinInterval,
		MaxRetryWait:        cfg.Webhook.MaxRetryWait,
	}, a.logger.Named("webhook"))
	if err != nil {
		return nil, fmt.Errorf("init webhook: %w", err)
	}
	pinger, err := heartbeat.New(client, cfg.Heartbeat.URL, cfg.Heartbeat.Method)
	if err != nil {
		return nil, fmt.Errorf("init heartbeat: %w", err)
	}
	if !pinger.Enabled() {
		a.logger.Warn("heartbeat.url is empty; liveness pings are disabled")
	}

	run, err := runner.New(runner.Deps{
		Source:    source,
		State:     seen,
		Detector:  detector.New(cfg.Detector.Cities),
		Formatter: formatter,
		Notifier:  hook,
		Pinger:    pinger,
		Clock:     clock,
		IDs:       uuid.New(),
	}, a.logger.Named("runner"))
	if err != nil {
		return nil, fmt.Errorf("init runner: %w", err)
	}
	return run, nil
}

// Close releases provider resources. It is called by a Cobra hook after the
// command finishes.
func (a *App) Close() {
	a.logger.Info("Shutting down application services...")
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.logger.Warn("Error closing service", zap.Error(err))
		}
	}
	a.closers = nil
}
