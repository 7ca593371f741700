// Package app builds the long-lived services from configuration. The CLI
// commands and the HTTP server share one App so every entry point runs the
// same import Service.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/nepjol-importer/internal/api"
	"github.com/JakeFAU/nepjol-importer/internal/clock/system"
	"github.com/JakeFAU/nepjol-importer/internal/config"
	collyfetcher "github.com/JakeFAU/nepjol-importer/internal/fetcher/colly"
	"github.com/JakeFAU/nepjol-importer/internal/hash/sha256"
	"github.com/JakeFAU/nepjol-importer/internal/id/uuid"
	"github.com/JakeFAU/nepjol-importer/internal/identity"
	"github.com/JakeFAU/nepjol-importer/internal/importer"
	"github.com/JakeFAU/nepjol-importer/internal/nepjol"
	"github.com/JakeFAU/nepjol-importer/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/nepjol-importer/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/nepjol-importer/internal/publisher/pubsub"
	"github.com/JakeFAU/nepjol-importer/internal/status"
	"github.com/JakeFAU/nepjol-importer/internal/storage"
	"github.com/JakeFAU/nepjol-importer/internal/storage/memory"
	"github.com/JakeFAU/nepjol-importer/internal/storage/postgres"
	"github.com/JakeFAU/nepjol-importer/internal/storage/s3"
)

// App holds the shared services for one process.
type App struct {
	Config  config.Config
	Service *importer.Service

	pool    *pgxpool.Pool
	closers []func() error
	logger  *zap.Logger
}

// New opens every backend named in cfg and assembles the import Service.
// Anything opened before a failure is closed again.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	clock := system.New()
	ids := uuid.New()

	if cfg.Catalog.Backend == config.BackendPostgres || cfg.Status.Backend == config.BackendPostgres {
		pool, err := postgres.Open(ctx, postgres.Config{DSN: cfg.DB.DSN, MaxConns: int32(cfg.DB.MaxConns)}) // #nosec G115 -- small config value
		if err != nil {
			return nil, err
		}
		a.pool = pool
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			return nil, err
		}
		logger.Info("connected to postgres")
	}

	catalog, err := a.catalog(cfg)
	if err != nil {
		return nil, err
	}
	statusStore, err := a.statusStore(cfg, clock)
	if err != nil {
		return nil, err
	}

	blobs, err := storage.Open(ctx, storage.Config{
		Backend:   cfg.Storage.Backend,
		BaseDir:   cfg.Storage.BaseDir,
		GCSBucket: cfg.Storage.GCSBucket,
		S3: s3.Config{
			Bucket:    cfg.Storage.S3Bucket,
			Region:    cfg.Storage.S3Region,
			Endpoint:  cfg.Storage.S3Endpoint,
			AccessKey: cfg.Storage.S3AccessKey,
			SecretKey: cfg.Storage.S3SecretKey,
			PathStyle: cfg.Storage.S3PathStyle,
		},
	}, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, blobs.Close)
	logger.Info("blob storage ready", zap.String("backend", cfg.Storage.Backend))

	publisher, err := a.publisher(ctx, cfg)
	if err != nil {
		return nil, err
	}

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:        cfg.HTTP.UserAgent,
		Timeout:          time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
		DownloadTimeout:  time.Duration(cfg.HTTP.DownloadTimeoutSeconds) * time.Second,
		MaxPageBytes:     cfg.HTTP.MaxPageBytes,
		MaxDownloadBytes: cfg.HTTP.MaxDownloadBytes,
	}, ratelimit.New(ratelimit.Config{Delay: cfg.Delay()}), logger)

	if cfg.Import.InstitutionName == config.DefaultInstitutionName {
		logger.Warn("import.institution_name not set; authors without an affiliation get the default",
			zap.String("institution", config.DefaultInstitutionName))
	}
	resolver := identity.New(catalog, clock, ids, identity.Config{
		InstitutionName: cfg.Import.InstitutionName,
	}, logger)

	imp := importer.New(fetcher, catalog, resolver, blobs, sha256.New(), clock, importer.Config{
		BaseURL:    cfg.Source.BaseURL,
		IndexPath:  cfg.Source.IndexPath,
		BlobPrefix: cfg.Storage.Prefix,
	}, logger)

	tracker := status.NewTracker(statusStore, clock, ids, logger)
	a.Service = importer.NewService(imp, tracker, publisher, cfg.PubSub.TopicName, clock, logger)
	return a, nil
}

func (a *App) catalog(cfg config.Config) (nepjol.Catalog, error) {
	if cfg.Catalog.Backend != config.BackendPostgres {
		a.logger.Warn("using in-memory catalog; imported records are lost on exit")
		return memory.NewCatalog(), nil
	}
	catalog, err := postgres.NewCatalog(a.pool)
	if err != nil {
		return nil, fmt.Errorf("open postgres catalog: %w", err)
	}
	return catalog, nil
}

func (a *App) statusStore(cfg config.Config, clock nepjol.Clock) (status.Store, error) {
	if cfg.Status.Backend != config.BackendPostgres {
		return memory.NewStatusStore(cfg.StatusTTL(), clock), nil
	}
	store, err := postgres.NewStatusStore(a.pool, cfg.StatusTTL(), clock)
	if err != nil {
		return nil, fmt.Errorf("open postgres status store: %w", err)
	}
	return store, nil
}

func (a *App) publisher(ctx context.Context, cfg config.Config) (nepjol.Publisher, error) {
	if cfg.PubSub.TopicName == "" {
		return memorypublisher.New(), nil
	}
	pub, err := pubsubpublisher.Open(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName, a.logger)
	if err != nil {
		return nil, fmt.Errorf("open pubsub publisher: %w", err)
	}
	a.closers = append(a.closers, pub.Close)
	a.logger.Info("publishing run notifications", zap.String("topic", cfg.PubSub.TopicName))
	return pub, nil
}

// Logger returns the process logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Ready reports whether the database, if any, is reachable.
func (a *App) Ready(ctx context.Context) error {
	if a.pool == nil {
		return nil
	}
	if err := a.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Server builds the HTTP API over the shared Service.
func (a *App) Server() *api.Server {
	return api.NewServer(a.Service, a.Config, a.Ready, a.logger)
}

// Close releases backends in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
