package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/cme-volume-scraper/internal/config"
	"github.com/JakeFAU/cme-volume-scraper/internal/extractor"
)

func fixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	page, err := os.ReadFile(filepath.Join("..", "extractor", "testdata", "gold_volume.html"))
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func baseConfig(url string) config.Config {
	return config.Config{
		Source:    config.SourceConfig{URL: url, UserAgent: "volscraper-test"},
		HTTP:      config.HTTPConfig{TimeoutSeconds: 5},
		Extractor: config.ExtractorConfig{Mode: config.ModeStatic, Selectors: extractor.DefaultSelectors()},
		Headless:  config.HeadlessConfig{NavTimeoutSec: 5},
		Storage:   config.StorageConfig{Driver: config.DriverMemory},
		Archive:   config.ArchiveConfig{Backend: config.ArchiveNone, Prefix: "pages"},
		API:       config.APIConfig{RecentLimit: 10, MaxLimit: 100},
	}
}

func TestNewMemoryStaticRun(t *testing.T) {
	t.Parallel()

	srv := fixtureServer(t)
	cfg := baseConfig(srv.URL)
	archiveDir := t.TempDir()
	cfg.Archive.Backend = config.ArchiveLocal
	cfg.Archive.LocalDir = archiveDir

	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer func() { require.NoError(t, a.Close()) }()

	out, err := a.Service().Run(context.Background())
	require.NoError(t, err)
	require.True(t, out.Inserted)
	require.Equal(t, int64(204813), *out.Reading.TotalVolume)
	require.NotEmpty(t, out.ArchiveURI)

	matches, err := filepath.Glob(filepath.Join(archiveDir, "pages", "*", "*", "*", "*.html"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	again, err := a.Service().Run(context.Background())
	require.NoError(t, err)
	require.False(t, again.Inserted)
}

func TestNewSQLiteAutoMode(t *testing.T) {
	t.Parallel()

	srv := fixtureServer(t)
	cfg := baseConfig(srv.URL)
	cfg.Extractor.Mode = config.ModeAuto
	cfg.Storage.Driver = config.DriverSQLite
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "volume.db")

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)

	out, err := a.Service().Run(context.Background())
	require.NoError(t, err)
	require.True(t, out.Inserted)
	require.False(t, out.Headless)
	require.NoError(t, a.Close())
	require.Equal(t, config.ModeAuto, a.Config().Extractor.Mode)
}

func TestNewStoreFailure(t *testing.T) {
	t.Parallel()

	cfg := baseConfig("https://example.com")
	cfg.Storage.Driver = config.DriverSQLite
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "missing", "dir", "volume.db")

	_, err := New(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "init sqlite store")
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), baseConfig("https://example.com"), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	require.NotNil(t, a.Logger())
}
