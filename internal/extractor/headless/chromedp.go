// Package headless extracts readings from the browser-rendered page via chromedp.
package headless

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/cme-volume-scraper/internal/extractor"
	"github.com/JakeFAU/cme-volume-scraper/internal/volume"
)

const defaultNavTimeout = 45 * time.Second

// Config controls the behavior of the headless extractor.
type Config struct {
	URL               string
	UserAgent         string
	NavigationTimeout time.Duration
	Selectors         extractor.Selectors
	// ExecPath overrides the Chrome binary; empty uses chromedp's lookup.
	ExecPath string
}

// Extractor implements volume.Extractor using headless Chrome. Renders are
// serialized; the page is heavy and one browser tab at a time is plenty.
type Extractor struct {
	cfg         Config
	slot        chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// New creates a headless extractor backed by chromedp.
func New(cfg Config) (*Extractor, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("source url is required")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavTimeout
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Extractor{
		cfg:         cfg,
		slot:        make(chan struct{}, 1),
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close shuts the browser allocator down.
func (e *Extractor) Close() {
	e.allocCancel()
}

// Extract navigates to the page, waits for the totals table to be populated by
// script, and parses the rendered DOM.
func (e *Extractor) Extract(ctx context.Context) (volume.Extraction, error) {
	if err := e.acquire(ctx); err != nil {
		return volume.Extraction{}, err
	}
	defer e.release()

	taskCtx, taskCancel := chromedp.NewContext(e.allocator)
	defer taskCancel()
	taskCtx, cancel := context.WithTimeout(taskCtx, e.navTimeout())
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	meta := &responseMeta{}
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	start := time.Now()
	html, finalURL, err := e.render(taskCtx)
	if err != nil {
		if status := meta.statusCode(); status != 0 && !isSuccess(status) {
			return volume.Extraction{}, fmt.Errorf("render %s: %w: %d", e.cfg.URL, extractor.ErrUnexpectedStatus, status)
		}
		return volume.Extraction{}, err
	}
	status := meta.statusCode()
	if status == 0 {
		status = 200
	}
	if !isSuccess(status) {
		return volume.Extraction{}, fmt.Errorf("render %s: %w: %d", e.cfg.URL, extractor.ErrUnexpectedStatus, status)
	}

	reading, err := extractor.ParseRendered(strings.NewReader(html), e.cfg.Selectors)
	if err != nil {
		return volume.Extraction{}, fmt.Errorf("parse rendered %s: %w", finalURL, err)
	}
	if finalURL == "" {
		finalURL = e.cfg.URL
	}
	return volume.Extraction{
		Reading:      reading,
		URL:          finalURL,
		StatusCode:   status,
		Body:         []byte(html),
		UsedHeadless: true,
		Duration:     time.Since(start),
	}, nil
}

func (e *Extractor) render(ctx context.Context) (string, string, error) {
	var (
		html     string
		finalURL string
	)
	actions := []chromedp.Action{
		e.networkSetupAction(),
		chromedp.Navigate(e.cfg.URL),
		chromedp.WaitReady(e.cfg.Selectors.CellSelector(), chromedp.ByQuery),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, finalURL, nil
}

func (e *Extractor) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if e.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(e.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (e *Extractor) acquire(ctx context.Context) error {
	select {
	case e.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (e *Extractor) release() {
	select {
	case <-e.slot:
	default:
	}
}

func (e *Extractor) navTimeout() time.Duration {
	if e.cfg.NavigationTimeout > 0 {
		return e.cfg.NavigationTimeout
	}
	return defaultNavTimeout
}

// responseMeta records the status of the main document response.
type responseMeta struct {
	mu     sync.Mutex
	status int
}

func (m *responseMeta) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	m.mu.Lock()
	if m.status == 0 {
		m.status = int(resp.Response.Status)
	}
	m.mu.Unlock()
}

func (m *responseMeta) statusCode() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func isSuccess(status int) bool {
	return status >= 200 && status <= 299
}
