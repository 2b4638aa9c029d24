// Package collyextractor fetches the volume page with gocolly and parses the
// static HTML.
package collyextractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/cme-volume-scraper/internal/extractor"
	"github.com/JakeFAU/cme-volume-scraper/internal/volume"
)

// Config controls collector behavior.
type Config struct {
	URL           string
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	Selectors     extractor.Selectors
}

// Extractor implements volume.Extractor using the Colly collector.
type Extractor struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// fetchResult is filled by the collector callbacks.
type fetchResult struct {
	url        string
	statusCode int
	body       []byte
	err        error
}

// New builds an Extractor.
func New(cfg Config) (*Extractor, error) {
	if cfg.URL == "" {
		return nil, errors.New("source url is required")
	}
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.WithTransport(newHTTPTransport())
	return &Extractor{cfg: cfg, baseCollector: c}, nil
}

// Extract fetches the page and parses the totals row.
func (e *Extractor) Extract(ctx context.Context) (volume.Extraction, error) {
	start := time.Now()
	result := &fetchResult{}
	collector := e.buildCollector(result)

	if err := e.runCollector(ctx, collector, result); err != nil {
		return volume.Extraction{}, err
	}

	reading, err := extractor.ParseDocument(bytes.NewReader(result.body), e.cfg.Selectors)
	if err != nil {
		return volume.Extraction{}, fmt.Errorf("parse %s: %w", result.url, err)
	}
	return volume.Extraction{
		Reading:    reading,
		URL:        result.url,
		StatusCode: result.statusCode,
		Body:       result.body,
		Duration:   time.Since(start),
	}, nil
}

func (e *Extractor) buildCollector(result *fetchResult) *colly.Collector {
	collector := e.baseCollector.Clone()
	if e.cfg.UserAgent != "" {
		collector.UserAgent = e.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !e.cfg.RespectRobots
	timeout := e.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	configureCollectorHooks(collector, result)
	return collector
}

func configureCollectorHooks(hooks collectorHooks, result *fetchResult) {
	hooks.OnResponse(func(r *colly.Response) {
		result.url = r.Request.URL.String()
		result.statusCode = r.StatusCode
		result.body = append([]byte(nil), r.Body...)
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			result.statusCode = r.StatusCode
		}
		result.err = err
	})
}

func (e *Extractor) runCollector(ctx context.Context, collector *colly.Collector, result *fetchResult) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(e.cfg.URL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		return checkResult(e.cfg.URL, err, result)
	}
}

// checkResult turns the visit outcome into an error. Any non-2xx status is a
// failure regardless of what colly reported.
func checkResult(url string, visitErr error, result *fetchResult) error {
	if result.statusCode != 0 && (result.statusCode < 200 || result.statusCode > 299) {
		return fmt.Errorf("fetch %s: %w: %d", url, extractor.ErrUnexpectedStatus, result.statusCode)
	}
	if visitErr != nil {
		return fmt.Errorf("colly visit failed: %w", visitErr)
	}
	if result.err != nil {
		return fmt.Errorf("colly response failed: %w", result.err)
	}
	if result.statusCode == 0 {
		return fmt.Errorf("fetch %s: no response received", url)
	}
	return nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
}
