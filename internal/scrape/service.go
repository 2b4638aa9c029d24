// Package scrape runs one extract, compare, and store cycle.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/cme-volume-scraper/internal/metrics"
	"github.com/JakeFAU/cme-volume-scraper/internal/volume"
)

// EventReadingInserted is the notification type published after an insert.
const EventReadingInserted = "reading.inserted"

// Config controls archive naming.
type Config struct {
	ContentType string
	BlobPrefix  string
}

// Outcome is the result of one cycle. Reading is the extracted candidate;
// when Inserted is true it carries the store-assigned ID and ScrapedAt.
type Outcome struct {
	Reading    volume.Reading
	Inserted   bool
	ArchiveURI string
	SourceURL  string
	Headless   bool
}

// Notification is the payload published for each inserted reading.
type Notification struct {
	Event      string         `json:"event"`
	Reading    volume.Reading `json:"reading"`
	SourceURL  string         `json:"source_url"`
	ArchiveURI string         `json:"archive_uri,omitempty"`
}

// Service wires an extractor to a store with optional archive and publish steps.
type Service struct {
	extractor volume.Extractor
	store     volume.Store
	blobStore volume.BlobStore
	publisher volume.Publisher
	hasher    volume.Hasher
	clock     volume.Clock
	cfg       Config
	logger    *zap.Logger

	// writeMu serializes the latest-compare-insert step.
	writeMu sync.Mutex
}

// New constructs a Service. blobStore and publisher may be nil to disable
// archiving and notifications.
func New(
	extractor volume.Extractor,
	store volume.Store,
	blobStore volume.BlobStore,
	publisher volume.Publisher,
	hasher volume.Hasher,
	clock volume.Clock,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if cfg.ContentType == "" {
		cfg.ContentType = "text/html; charset=utf-8"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		extractor: extractor,
		store:     store,
		blobStore: blobStore,
		publisher: publisher,
		hasher:    hasher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Extract fetches and parses the page without touching the store.
func (s *Service) Extract(ctx context.Context) (volume.Extraction, error) {
	ext, err := s.extractor.Extract(ctx)
	if err != nil {
		return volume.Extraction{}, fmt.Errorf("%w: %w", volume.ErrExtract, err)
	}
	metrics.ObserveExtraction(ext.UsedHeadless, ext.Duration)
	return ext, nil
}

// Run extracts a candidate and appends it when it differs from the latest
// stored reading. Archive and publish failures are logged only.
func (s *Service) Run(ctx context.Context) (Outcome, error) {
	ext, err := s.Extract(ctx)
	if err != nil {
		metrics.ObserveScrape(metrics.OutcomeExtractError)
		s.logger.Warn("extraction failed", zap.Error(err))
		return Outcome{}, err
	}
	out := Outcome{Reading: ext.Reading, SourceURL: ext.URL, Headless: ext.UsedHeadless}

	stored, inserted, err := s.appendIfNew(ctx, ext.Reading)
	if err != nil {
		metrics.ObserveScrape(metrics.OutcomeStoreError)
		return out, err
	}
	if !inserted {
		metrics.ObserveScrape(metrics.OutcomeUnchanged)
		return out, nil
	}
	out.Reading = stored
	out.Inserted = true
	metrics.ObserveScrape(metrics.OutcomeInserted)
	metrics.ObserveInsert(stored.TotalVolume)
	s.logger.Info("reading inserted",
		zap.Int64("id", stored.ID),
		zap.Stringp("last_updated", stored.LastUpdated),
		zap.Bool("headless", ext.UsedHeadless),
	)

	out.ArchiveURI = s.archive(ctx, ext.Body, stored.ScrapedAt)
	s.publish(ctx, Notification{
		Event:      EventReadingInserted,
		Reading:    stored,
		SourceURL:  ext.URL,
		ArchiveURI: out.ArchiveURI,
	})
	return out, nil
}

// Recent returns up to limit stored readings, most recent first.
func (s *Service) Recent(ctx context.Context, limit int) ([]volume.Reading, error) {
	readings, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %w", volume.ErrStore, err)
	}
	return readings, nil
}

// appendIfNew inserts candidate when it differs from the latest stored
// reading. Concurrent cycles see each other's inserts.
func (s *Service) appendIfNew(ctx context.Context, candidate volume.Reading) (volume.Reading, bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	last, err := s.latest(ctx)
	if err != nil {
		return volume.Reading{}, false, err
	}
	if !volume.IsNew(candidate, last) {
		s.logger.Debug("reading unchanged", zap.Int64("last_id", last.ID))
		return volume.Reading{}, false, nil
	}

	candidate.ScrapedAt = s.now()
	stored, err := s.store.Insert(ctx, candidate)
	if err != nil {
		s.logger.Error("insert reading failed", zap.Error(err))
		return volume.Reading{}, false, fmt.Errorf("%w: insert: %w", volume.ErrStore, err)
	}
	return stored, true, nil
}

func (s *Service) latest(ctx context.Context) (*volume.Reading, error) {
	last, err := s.store.Latest(ctx)
	if errors.Is(err, volume.ErrNoReadings) {
		return nil, nil
	}
	if err != nil {
		s.logger.Error("load latest reading failed", zap.Error(err))
		return nil, fmt.Errorf("%w: latest: %w", volume.ErrStore, err)
	}
	return &last, nil
}

func (s *Service) archive(ctx context.Context, body []byte, at time.Time) string {
	if s.blobStore == nil || len(body) == 0 {
		return ""
	}
	hash, err := s.hasher.Hash(body)
	if err != nil {
		metrics.ObserveSideEffectFailure("archive")
		s.logger.Warn("hash page failed", zap.Error(err))
		return ""
	}
	uri, err := s.blobStore.PutObject(ctx, s.BlobPath(at, hash), s.cfg.ContentType, body)
	if err != nil {
		metrics.ObserveSideEffectFailure("archive")
		s.logger.Warn("archive page failed", zap.Error(err))
		return ""
	}
	s.logger.Debug("page archived", zap.String("uri", uri))
	return uri
}

func (s *Service) publish(ctx context.Context, n Notification) {
	if s.publisher == nil {
		return
	}
	id, err := s.publisher.Publish(ctx, n)
	if err != nil {
		metrics.ObserveSideEffectFailure("publish")
		s.logger.Warn("publish notification failed", zap.Error(err))
		return
	}
	s.logger.Debug("notification published", zap.String("message_id", id))
}

// BlobPath returns <prefix>/YYYY/MM/DD/<hash>.html for the given time.
func (s *Service) BlobPath(at time.Time, hash string) string {
	day := at.UTC().Format("2006/01/02")
	prefix := strings.Trim(s.cfg.BlobPrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s.html", day, hash)
	}
	return fmt.Sprintf("%s/%s/%s.html", prefix, day, hash)
}

func (s *Service) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now().UTC()
}
