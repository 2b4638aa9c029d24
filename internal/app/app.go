// Package app builds and owns the long-lived services behind every command:
// the extractor, the readings store, the optional archive and publisher, and
// the scrape service that ties them together.
package app

import (
	"context"
	"errors"
	"fmt"

	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/cme-volume-scraper/internal/clock/system"
	"github.com/JakeFAU/cme-volume-scraper/internal/config"
	"github.com/JakeFAU/cme-volume-scraper/internal/extractor"
	collyextractor "github.com/JakeFAU/cme-volume-scraper/internal/extractor/colly"
	"github.com/JakeFAU/cme-volume-scraper/internal/extractor/headless"
	"github.com/JakeFAU/cme-volume-scraper/internal/hash/sha256"
	"github.com/JakeFAU/cme-volume-scraper/internal/policy/ratelimit"
	"github.com/JakeFAU/cme-volume-scraper/internal/publisher/pubsub"
	"github.com/JakeFAU/cme-volume-scraper/internal/scrape"
	"github.com/JakeFAU/cme-volume-scraper/internal/storage/gcs"
	"github.com/JakeFAU/cme-volume-scraper/internal/storage/local"
	"github.com/JakeFAU/cme-volume-scraper/internal/storage/memory"
	"github.com/JakeFAU/cme-volume-scraper/internal/storage/postgres"
	"github.com/JakeFAU/cme-volume-scraper/internal/storage/sqlite"
	"github.com/JakeFAU/cme-volume-scraper/internal/volume"
)

// App holds the shared services for the process lifetime.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	store   volume.Store
	service *scrape.Service
	closers []func() error
}

// New wires every service described by cfg. Anything opened before a failure
// is closed again.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}

	ext, err := a.buildExtractor()
	if err != nil {
		return nil, a.abort(err)
	}
	if interval := cfg.MinFetchInterval(); interval > 0 {
		ext = ratelimit.Wrap(ext, ratelimit.New(ratelimit.Config{MinInterval: interval}))
	}
	store, err := a.buildStore(ctx)
	if err != nil {
		return nil, a.abort(err)
	}
	a.store = store
	blobs, err := a.buildBlobStore(ctx)
	if err != nil {
		return nil, a.abort(err)
	}
	pub, err := a.buildPublisher(ctx)
	if err != nil {
		return nil, a.abort(err)
	}

	a.service = scrape.New(
		ext,
		store,
		blobs,
		pub,
		sha256.New(),
		system.New(),
		scrape.Config{ContentType: cfg.Archive.ContentType, BlobPrefix: cfg.Archive.Prefix},
		logger.Named("scrape"),
	)
	logger.Info("application services initialized",
		zap.String("extractor_mode", cfg.Extractor.Mode),
		zap.String("storage_driver", cfg.Storage.Driver),
		zap.String("archive_backend", cfg.Archive.Backend),
		zap.Bool("publisher_enabled", pub != nil),
	)
	return a, nil
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the root logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Service returns the scrape service.
func (a *App) Service() *scrape.Service { return a.service }

// Close releases resources in reverse order of acquisition.
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

func (a *App) abort(err error) error {
	if closeErr := a.Close(); closeErr != nil {
		a.logger.Warn("cleanup after init failure", zap.Error(closeErr))
	}
	return err
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

func (a *App) buildExtractor() (volume.Extractor, error) {
	cfg := a.cfg
	newStatic := func() (volume.Extractor, error) {
		ext, err := collyextractor.New(collyextractor.Config{
			URL:           cfg.Source.URL,
			UserAgent:     cfg.Source.UserAgent,
			RespectRobots: cfg.HTTP.RespectRobots,
			Timeout:       cfg.FetchTimeout(),
			Selectors:     cfg.Extractor.Selectors,
		})
		if err != nil {
			return nil, fmt.Errorf("init static extractor: %w", err)
		}
		return ext, nil
	}
	newHeadless := func() (volume.Extractor, error) {
		ext, err := headless.New(headless.Config{
			URL:               cfg.Source.URL,
			UserAgent:         cfg.Source.UserAgent,
			NavigationTimeout: cfg.NavigationTimeout(),
			Selectors:         cfg.Extractor.Selectors,
			ExecPath:          cfg.Headless.ExecPath,
		})
		if err != nil {
			return nil, fmt.Errorf("init headless extractor: %w", err)
		}
		a.onClose(func() error {
			ext.Close()
			return nil
		})
		return ext, nil
	}

	switch cfg.Extractor.Mode {
	case config.ModeHeadless:
		return newHeadless()
	case config.ModeAuto:
		static, err := newStatic()
		if err != nil {
			return nil, err
		}
		browser, err := newHeadless()
		if err != nil {
			return nil, err
		}
		return extractor.NewFallback(static, browser, a.logger.Named("extractor")), nil
	default:
		return newStatic()
	}
}

func (a *App) buildStore(ctx context.Context) (volume.Store, error) {
	cfg := a.cfg.Storage
	var (
		store volume.Store
		err   error
	)
	switch cfg.Driver {
	case config.DriverPostgres:
		store, err = postgres.New(ctx, postgres.Config{DSN: cfg.PostgresDSN, Table: cfg.Table, MaxConns: cfg.MaxConns})
	case config.DriverMemory:
		store = memory.NewReadingStore()
	default:
		store, err = sqlite.New(ctx, sqlite.Config{Path: cfg.SQLitePath, Table: cfg.Table})
	}
	if err != nil {
		return nil, fmt.Errorf("init %s store: %w", cfg.Driver, err)
	}
	a.onClose(store.Close)
	return store, nil
}

func (a *App) buildBlobStore(ctx context.Context) (volume.BlobStore, error) {
	cfg := a.cfg.Archive
	switch cfg.Backend {
	case config.ArchiveLocal:
		blobs, err := local.New(local.Config{BaseDir: cfg.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("init local archive: %w", err)
		}
		return blobs, nil
	case config.ArchiveGCS:
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		blobs, err := gcs.New(client, gcs.Config{Bucket: cfg.GCSBucket})
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("init gcs archive: %w", err)
		}
		a.onClose(blobs.Close)
		return blobs, nil
	default:
		return nil, nil
	}
}

func (a *App) buildPublisher(ctx context.Context) (volume.Publisher, error) {
	cfg := a.cfg.PubSub
	if cfg.TopicName == "" {
		return nil, nil
	}
	pub, err := pubsub.New(ctx, pubsub.Config{ProjectID: cfg.ProjectID, TopicName: cfg.TopicName})
	if err != nil {
		return nil, fmt.Errorf("init publisher: %w", err)
	}
	a.onClose(pub.Close)
	return pub, nil
}
