package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(true)
	require.NoError(t, err)
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("development logger ready")
}

func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(false)
	require.NoError(t, err)
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("production logger ready")
}

func TestNewWithFileSink(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "volscraper.log")
	logger, err := NewWithOptions(Options{File: path, MaxBackups: 1})
	require.NoError(t, err)
	logger.Named("scrape").Info("reading inserted")
	_ = logger.Sync()

	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"msg":"reading inserted"`)
	require.Contains(t, string(data), `"logger":"scrape"`)
}
