package volume

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors shared across the pipeline.
var (
	// ErrNoReadings is returned by Store.Latest when nothing has been stored yet.
	ErrNoReadings = errors.New("no readings stored")
	// ErrExtract classifies fetch and parse failures.
	ErrExtract = errors.New("extract reading")
	// ErrStore classifies persistence failures.
	ErrStore = errors.New("store reading")
)

// Extraction is a Reading plus metadata about the page it came from.
type Extraction struct {
	Reading      Reading
	URL          string
	StatusCode   int
	Body         []byte
	UsedHeadless bool
	Duration     time.Duration
}

// Extractor converts the source page into a Reading or fails.
type Extractor interface {
	Extract(ctx context.Context) (Extraction, error)
}

// Store is an append-only sequence of Readings.
type Store interface {
	// Latest returns the most recently inserted reading or ErrNoReadings.
	Latest(ctx context.Context) (Reading, error)
	// Insert appends unconditionally and returns the reading with its ID set.
	Insert(ctx context.Context, reading Reading) (Reading, error)
	// List returns up to limit readings, most recent first.
	List(ctx context.Context, limit int) ([]Reading, error)
	Close() error
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes notifications about newly stored readings.
type Publisher interface {
	Publish(ctx context.Context, payload any) (string, error)
}

// Hasher computes content digests.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
