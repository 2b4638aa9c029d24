package collyextractor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/cme-volume-scraper/internal/extractor"
)

func newFixtureServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	body, err := os.ReadFile("../testdata/gold_volume.html")
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "volscraper-test" {
			http.Error(w, "unexpected user agent "+got, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExtractParsesFixture(t *testing.T) {
	t.Parallel()

	srv := newFixtureServer(t, http.StatusOK)
	ex, err := New(Config{URL: srv.URL, UserAgent: "volscraper-test", Timeout: 5 * time.Second})
	require.NoError(t, err)

	got, err := ex.Extract(context.Background())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, got.StatusCode)
	require.False(t, got.UsedHeadless)
	require.NotEmpty(t, got.Body)
	require.Equal(t, int64(201345), *got.Reading.Globex)
	require.Equal(t, int64(-1532), *got.Reading.Change)

	again, err := ex.Extract(context.Background())
	require.NoError(t, err, "the same URL must be fetchable on every call")
	require.Equal(t, got.Reading, again.Reading)
}

func TestExtractNonSuccessStatusFails(t *testing.T) {
	t.Parallel()

	srv := newFixtureServer(t, http.StatusServiceUnavailable)
	ex, err := New(Config{URL: srv.URL, UserAgent: "volscraper-test", Timeout: 5 * time.Second})
	require.NoError(t, err)

	got, err := ex.Extract(context.Background())
	require.ErrorIs(t, err, extractor.ErrUnexpectedStatus)
	require.Nil(t, got.Reading.Globex, "no partial reading on failure")
}

func TestExtractMarkupChanged(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body><div id=\"root\"></div></body></html>"))
	}))
	defer srv.Close()

	ex, err := New(Config{URL: srv.URL})
	require.NoError(t, err)
	_, err = ex.Extract(context.Background())
	require.ErrorIs(t, err, extractor.ErrMarkupChanged)
}

func TestExtractCanceledContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(release)

	ex, err := New(Config{URL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ex.Extract(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewRequiresURL(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)
}

func TestBuildCollectorAppliesConfig(t *testing.T) {
	t.Parallel()

	ex, err := New(Config{URL: "https://example.com", UserAgent: "coverage-agent", RespectRobots: true})
	require.NoError(t, err)
	collector := ex.buildCollector(&fetchResult{})
	require.Equal(t, "coverage-agent", collector.UserAgent)
	require.False(t, collector.IgnoreRobotsTxt)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	var result fetchResult
	hooks := &stubHooks{}
	configureCollectorHooks(hooks, &result)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("body"),
		Request:    &colly.Request{URL: mustParseURL(t, "https://example.com/volume")},
	})
	require.Equal(t, http.StatusOK, result.statusCode)
	require.Equal(t, "https://example.com/volume", result.url)
	require.Equal(t, "body", string(result.body))

	hooks.onError(&colly.Response{StatusCode: http.StatusNotFound}, errors.New("Not Found"))
	require.Equal(t, http.StatusNotFound, result.statusCode)
	require.EqualError(t, result.err, "Not Found")
}

func TestCheckResult(t *testing.T) {
	t.Parallel()

	require.NoError(t, checkResult("u", nil, &fetchResult{statusCode: 200}))
	require.ErrorIs(t, checkResult("u", errors.New("Forbidden"), &fetchResult{statusCode: 403}), extractor.ErrUnexpectedStatus)
	require.Error(t, checkResult("u", errors.New("dial tcp: refused"), &fetchResult{}))
	require.Error(t, checkResult("u", nil, &fetchResult{}))
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse url %q: %v", raw, err)
	}
	return u
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
