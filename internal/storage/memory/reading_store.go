package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/JakeFAU/cme-volume-scraper/internal/volume"
)

// ReadingStore is an append-only in-memory volume.Store.
type ReadingStore struct {
	mu       sync.RWMutex
	readings []volume.Reading
	closed   bool
}

// NewReadingStore constructs an empty ReadingStore.
func NewReadingStore() *ReadingStore {
	return &ReadingStore{}
}

var errClosed = errors.New("reading store closed")

// Latest returns the last appended reading.
func (s *ReadingStore) Latest(_ context.Context) (volume.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return volume.Reading{}, errClosed
	}
	if len(s.readings) == 0 {
		return volume.Reading{}, volume.ErrNoReadings
	}
	return s.readings[len(s.readings)-1], nil
}

// Insert appends the reading and assigns the next ID.
func (s *ReadingStore) Insert(_ context.Context, reading volume.Reading) (volume.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return volume.Reading{}, errClosed
	}
	reading.ID = int64(len(s.readings) + 1)
	s.readings = append(s.readings, reading)
	return reading, nil
}

// List returns up to limit readings, newest first.
func (s *ReadingStore) List(_ context.Context, limit int) ([]volume.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	if limit <= 0 || limit > len(s.readings) {
		limit = len(s.readings)
	}
	out := make([]volume.Reading, 0, limit)
	for i := len(s.readings) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.readings[i])
	}
	return out, nil
}

// Close marks the store unusable.
func (s *ReadingStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
