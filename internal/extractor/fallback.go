package extractor

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/cme-volume-scraper/internal/volume"
)

// Fallback runs the primary extractor and promotes to the secondary when the
// page came back without the expected markup, which usually means the table
// is rendered client-side.
type Fallback struct {
	primary   volume.Extractor
	secondary volume.Extractor
	logger    *zap.Logger
}

// NewFallback wires a primary and an optional secondary extractor.
func NewFallback(primary, secondary volume.Extractor, logger *zap.Logger) *Fallback {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fallback{primary: primary, secondary: secondary, logger: logger}
}

// ShouldPromote reports whether err warrants a rendered retry.
func ShouldPromote(err error) bool {
	return errors.Is(err, ErrMarkupChanged) || errors.Is(err, ErrTooFewValues)
}

// Extract implements volume.Extractor.
func (f *Fallback) Extract(ctx context.Context) (volume.Extraction, error) {
	if f.primary == nil {
		return volume.Extraction{}, errors.New("no primary extractor configured")
	}
	extraction, err := f.primary.Extract(ctx)
	if err == nil || f.secondary == nil || !ShouldPromote(err) {
		return extraction, err
	}
	f.logger.Info("promoting to headless extraction", zap.Error(err))
	extraction, secondErr := f.secondary.Extract(ctx)
	if secondErr != nil {
		return volume.Extraction{}, fmt.Errorf("headless after %v: %w", err, secondErr)
	}
	return extraction, nil
}
