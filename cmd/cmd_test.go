package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/cme-volume-scraper/internal/config"
	"github.com/JakeFAU/cme-volume-scraper/internal/hash/sha256"
	"github.com/JakeFAU/cme-volume-scraper/internal/scrape"
	"github.com/JakeFAU/cme-volume-scraper/internal/storage/memory"
	"github.com/JakeFAU/cme-volume-scraper/internal/volume"
)

type stubExtractor struct {
	reading volume.Reading
	err     error
}

func (s stubExtractor) Extract(context.Context) (volume.Extraction, error) {
	if s.err != nil {
		return volume.Extraction{}, s.err
	}
	return volume.Extraction{Reading: s.reading, URL: "https://example.com/gold.volume.html"}, nil
}

type fakeApp struct {
	cfg     config.Config
	service *scrape.Service
	store   *memory.ReadingStore
	closed  int
}

func (f *fakeApp) Config() config.Config { return f.cfg }

func (f *fakeApp) Logger() *zap.Logger { return zap.NewNop() }

func (f *fakeApp) Service() *scrape.Service { return f.service }

func (f *fakeApp) Close() error {
	f.closed++
	return nil
}

func newFakeApp(ext volume.Extractor) *fakeApp {
	store := memory.NewReadingStore()
	return &fakeApp{
		cfg:     config.Config{API: config.APIConfig{RecentLimit: 10, MaxLimit: 100}},
		store:   store,
		service: scrape.New(ext, store, nil, nil, sha256.New(), nil, scrape.Config{}, zap.NewNop()),
	}
}

func sample() volume.Reading {
	label := "Final"
	updated := "16 Oct 2026 06:00:00 PM CT"
	total := int64(204813)
	globex := int64(201345)
	return volume.Reading{Label: &label, LastUpdated: &updated, TotalVolume: &total, Globex: &globex}
}

// runCmd executes the root command with fake services and returns stdout.
func runCmd(t *testing.T, fake *fakeApp, args ...string) (string, error) {
	t.Helper()
	prev := newApp
	newApp = func(context.Context, string) (App, error) { return fake, nil }
	t.Cleanup(func() { newApp = prev })

	root, closeApp := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	require.NoError(t, closeApp())
	return out.String(), err
}

func TestScrapeCommandPrintsOutcome(t *testing.T) {
	fake := newFakeApp(stubExtractor{reading: sample()})

	out, err := runCmd(t, fake, "scrape")
	require.NoError(t, err)
	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Equal(t, true, res["ok"])
	require.Equal(t, true, res["inserted"])
	require.Equal(t, 1, fake.closed)

	out, err = runCmd(t, fake, "scrape")
	require.NoError(t, err)
	require.Contains(t, out, `"inserted": false`)
}

func TestScrapeCommandFailureStillClosesApp(t *testing.T) {
	fake := newFakeApp(stubExtractor{err: errors.New("unexpected status 503")})

	out, err := runCmd(t, fake, "scrape")
	require.EqualError(t, err, "scrape failed")
	require.Contains(t, out, `"ok": false`)
	require.Contains(t, out, "503")
	require.NotContains(t, out, "inserted")
	require.Equal(t, 1, fake.closed)
}

func TestListCommandRendersTable(t *testing.T) {
	fake := newFakeApp(stubExtractor{reading: sample()})
	_, err := fake.store.Insert(context.Background(), sample())
	require.NoError(t, err)

	out, err := runCmd(t, fake, "list", "--limit", "5")
	require.NoError(t, err)
	require.Contains(t, out, "PNT/CLEARPORT")
	require.Contains(t, out, "204813")
	require.Contains(t, out, "1 READINGS")
}

func TestListCommandJSON(t *testing.T) {
	fake := newFakeApp(stubExtractor{reading: sample()})
	_, err := fake.store.Insert(context.Background(), sample())
	require.NoError(t, err)

	out, err := runCmd(t, fake, "list", "--json")
	require.NoError(t, err)
	var readings []volume.Reading
	require.NoError(t, json.Unmarshal([]byte(out), &readings))
	require.Len(t, readings, 1)
	require.Equal(t, int64(1), readings[0].ID)
}

func TestNewAppFailure(t *testing.T) {
	prev := newApp
	newApp = func(context.Context, string) (App, error) { return nil, errors.New("bad config") }
	t.Cleanup(func() { newApp = prev })

	root, closeApp := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"list"})
	err := root.ExecuteContext(context.Background())
	require.ErrorContains(t, err, "bad config")
	require.NoError(t, closeApp())
}

func TestHTTPServerRoutes(t *testing.T) {
	fake := newFakeApp(stubExtractor{reading: sample()})
	fake.cfg.Server.Port = 8089
	srv := newHTTPServer(fake)
	require.Equal(t, ":8089", srv.Addr)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scrape", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), `"inserted":true`))
}

func TestServeShutsDownOnCancel(t *testing.T) {
	fake := newFakeApp(stubExtractor{reading: sample()})
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler(), ReadHeaderTimeout: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, fake, srv) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestServeReportsListenFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close() //nolint:errcheck

	fake := newFakeApp(stubExtractor{reading: sample()})
	srv := &http.Server{Addr: ln.Addr().String(), Handler: http.NotFoundHandler(), ReadHeaderTimeout: time.Second}
	err = serve(context.Background(), fake, srv)
	require.ErrorContains(t, err, "http server")
}
