// Package collyfetcher implements nepjol.Fetcher using gocolly.
package collyfetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/nepjol-importer/internal/metrics"
	"github.com/JakeFAU/nepjol-importer/internal/nepjol"
)

var (
	// ErrEmptyBody is returned when the source answered without content.
	ErrEmptyBody = errors.New("empty response body")
	// ErrTooLarge is returned when a body exceeds the configured size limit.
	ErrTooLarge = errors.New("response body exceeds size limit")
)

const (
	defaultTimeout          = 30 * time.Second
	defaultDownloadTimeout  = 60 * time.Second
	defaultMaxPageBytes     = 10 << 20
	defaultMaxDownloadBytes = 50 << 20
)

// Config controls collector behavior.
type Config struct {
	UserAgent        string
	Timeout          time.Duration
	DownloadTimeout  time.Duration
	MaxPageBytes     int
	MaxDownloadBytes int
}

// Pacer delays outgoing requests.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Fetcher implements nepjol.Fetcher using the Colly collector. Every request is
// paced and attempted exactly once.
type Fetcher struct {
	cfg       Config
	pacer     Pacer
	pages     *colly.Collector
	downloads *colly.Collector
	logger    *zap.Logger
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

type response struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// New builds a Fetcher. A nil pacer disables pacing.
func New(cfg Config, pacer Pacer, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = defaultDownloadTimeout
	}
	if cfg.MaxPageBytes <= 0 {
		cfg.MaxPageBytes = defaultMaxPageBytes
	}
	if cfg.MaxDownloadBytes <= 0 {
		cfg.MaxDownloadBytes = defaultMaxDownloadBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := newHTTPTransport()

	pages := newCollector(cfg.UserAgent, transport, cfg.Timeout)
	downloads := newCollector(cfg.UserAgent, transport, cfg.DownloadTimeout)
	// colly truncates at MaxBodySize without an error; one spare byte tells a
	// body at the limit apart from a cut-off one.
	pages.MaxBodySize = cfg.MaxPageBytes + 1
	downloads.MaxBodySize = cfg.MaxDownloadBytes + 1

	return &Fetcher{
		cfg:       cfg,
		pacer:     pacer,
		pages:     pages,
		downloads: downloads,
		logger:    logger,
	}
}

func newCollector(userAgent string, transport http.RoundTripper, timeout time.Duration) *colly.Collector {
	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	if userAgent != "" {
		c.UserAgent = userAgent
	}
	c.WithTransport(transport)
	c.SetRequestTimeout(timeout)
	return c
}

// Fetch GETs a page and parses it as HTML. The returned document carries the
// final URL so relative links can be resolved.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	start := time.Now()
	resp, err := f.get(ctx, f.pages, rawURL, f.cfg.MaxPageBytes)
	metrics.ObserveFetch(metrics.KindPage, rawURL, err == nil, len(resp.Body), time.Since(start))
	if err != nil {
		f.logger.Warn("page fetch failed", zap.String("url", rawURL), zap.Error(err))
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		f.logger.Warn("html parse failed", zap.String("url", rawURL), zap.Error(err))
		return nil, fmt.Errorf("parse html: %w", err)
	}
	if u, parseErr := url.Parse(resp.URL); parseErr == nil {
		doc.Url = u
	}
	return doc, nil
}

// Download GETs a binary resource such as a PDF or cover image.
func (f *Fetcher) Download(ctx context.Context, rawURL string) (nepjol.Download, error) {
	start := time.Now()
	resp, err := f.get(ctx, f.downloads, rawURL, f.cfg.MaxDownloadBytes)
	metrics.ObserveFetch(metrics.KindDownload, rawURL, err == nil, len(resp.Body), time.Since(start))
	if err != nil {
		f.logger.Warn("download failed", zap.String("url", rawURL), zap.Error(err))
		return nepjol.Download{}, err
	}
	return nepjol.Download{
		URL:         resp.URL,
		ContentType: resp.ContentType,
		Body:        resp.Body,
	}, nil
}

func (f *Fetcher) get(ctx context.Context, base *colly.Collector, rawURL string, limit int) (response, error) {
	if f.pacer != nil {
		if err := f.pacer.Wait(ctx); err != nil {
			return response{}, fmt.Errorf("pace request: %w", err)
		}
	}
	var (
		result   response
		fetchErr error
	)
	collector := base.Clone()
	f.configureCollectorHooks(collector, &result, &fetchErr)
	if err := f.runCollector(ctx, collector, rawURL, &fetchErr); err != nil {
		return response{}, err
	}
	if len(result.Body) == 0 {
		return response{}, fmt.Errorf("fetch %s: %w", rawURL, ErrEmptyBody)
	}
	if len(result.Body) > limit {
		return response{}, fmt.Errorf("fetch %s: %w (limit %d bytes)", rawURL, ErrTooLarge, limit)
	}
	return result, nil
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, result *response, fetchErr *error) {
	hooks.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept-Language", "en")
	})

	hooks.OnResponse(func(r *colly.Response) {
		*result = response{
			URL:         r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			ContentType: r.Headers.Get("Content-Type"),
			Body:        append([]byte(nil), r.Body...),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			*fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
			return
		}
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, rawURL string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
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
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
