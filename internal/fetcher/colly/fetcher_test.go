package collyfetcher

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
)

func TestFetcherFetchParsesDocument(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><h1 class="page_title">Journals</h1></body></html>`))
	}))
	t.Cleanup(srv.Close)

	pacer := &countingPacer{}
	f := New(Config{UserAgent: "test-agent"}, pacer, nil)

	doc, err := f.Fetch(context.Background(), srv.URL+"/index")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if got := doc.Find("h1.page_title").Text(); got != "Journals" {
		t.Fatalf("unexpected heading %q", got)
	}
	if doc.Url == nil || doc.Url.Path != "/index" {
		t.Fatalf("expected document url to be set, got %v", doc.Url)
	}
	if pacer.calls.Load() != 1 {
		t.Fatalf("expected one pacer call, got %d", pacer.calls.Load())
	}
}

func TestFetcherFetchReportsHTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	f := New(Config{}, nil, nil)
	if _, err := f.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestFetcherDownload(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	t.Cleanup(srv.Close)

	pacer := &countingPacer{}
	f := New(Config{}, pacer, nil)
	dl, err := f.Download(context.Background(), srv.URL+"/article/download/1/2")
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if string(dl.Body) != "%PDF-1.4" || dl.ContentType != "application/pdf" {
		t.Fatalf("unexpected download %+v", dl)
	}
	if pacer.calls.Load() != 1 {
		t.Fatalf("expected download to be paced, got %d calls", pacer.calls.Load())
	}
}

func TestFetcherDownloadRejectsOversizedBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(bytes.Repeat([]byte("x"), 1000))
	}))
	t.Cleanup(srv.Close)

	f := New(Config{MaxDownloadBytes: 100}, nil, nil)
	dl, err := f.Download(context.Background(), srv.URL)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got err=%v len=%d", err, len(dl.Body))
	}
	if len(dl.Body) != 0 {
		t.Fatalf("expected no body on oversize, got %d bytes", len(dl.Body))
	}
}

func TestFetcherDownloadAcceptsBodyAtLimit(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("x"), 100))
	}))
	t.Cleanup(srv.Close)

	f := New(Config{MaxDownloadBytes: 100}, nil, nil)
	dl, err := f.Download(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if len(dl.Body) != 100 {
		t.Fatalf("expected full body, got %d bytes", len(dl.Body))
	}
}

func TestFetcherFetchRejectsOversizedPage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>" + strings.Repeat("<p>row</p>", 50) + "</body></html>"))
	}))
	t.Cleanup(srv.Close)

	f := New(Config{MaxPageBytes: 64}, nil, nil)
	if _, err := f.Fetch(context.Background(), srv.URL); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestFetcherEmptyBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	f := New(Config{}, nil, nil)
	_, err := f.Download(context.Background(), srv.URL)
	if !errors.Is(err, ErrEmptyBody) {
		t.Fatalf("expected ErrEmptyBody, got %v", err)
	}
}

func TestFetcherPacerErrorStopsRequest(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	t.Cleanup(srv.Close)

	f := New(Config{}, &countingPacer{err: context.Canceled}, nil)
	_, err := f.Fetch(context.Background(), srv.URL)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled error, got %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("expected no request, got %d", hits.Load())
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	t.Parallel()

	f := New(Config{UserAgent: "coverage-agent", MaxDownloadBytes: 1024}, nil, nil)
	if f.cfg.Timeout != 30*time.Second || f.cfg.DownloadTimeout != 60*time.Second {
		t.Fatalf("unexpected timeouts: %+v", f.cfg)
	}
	if f.pages.UserAgent != "coverage-agent" {
		t.Fatalf("expected user agent override, got %q", f.pages.UserAgent)
	}
	if f.downloads.MaxBodySize != 1025 {
		t.Fatalf("expected download body limit plus one, got %d", f.downloads.MaxBodySize)
	}
	if f.cfg.MaxPageBytes != 10<<20 || f.pages.MaxBodySize != 10<<20+1 {
		t.Fatalf("expected default page limit, got %d/%d", f.cfg.MaxPageBytes, f.pages.MaxBodySize)
	}
	if !f.pages.AllowURLRevisit {
		t.Fatal("expected revisits to be allowed")
	}
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{}, nil, nil)
	var result response
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, &result, &fetchErr)
	if hooks.onRequest == nil || hooks.onResponse == nil || hooks.onError == nil {
		t.Fatal("expected hooks to be registered")
	}

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	if collyReq.Headers.Get("Accept-Language") != "en" {
		t.Fatalf("expected language header, got %+v", collyReq.Headers)
	}

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("body"),
		Headers:    &http.Header{"Content-Type": {"text/html"}},
		Request: &colly.Request{
			URL: mustParseURL(t, "https://example.com"),
		},
	})
	if result.StatusCode != http.StatusOK || string(result.Body) != "body" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.ContentType != "text/html" {
		t.Fatalf("expected content type copied, got %q", result.ContentType)
	}

	hooks.onError(nil, errors.New("boom"))
	if fetchErr == nil || fetchErr.Error() != "boom" {
		t.Fatalf("expected fetchErr set, got %v", fetchErr)
	}
	hooks.onError(&colly.Response{StatusCode: http.StatusBadGateway}, errors.New("bad gateway"))
	if fetchErr == nil || fetchErr.Error() != "status 502: bad gateway" {
		t.Fatalf("expected status in error, got %v", fetchErr)
	}
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse url %q: %v", raw, err)
	}
	return u
}

type countingPacer struct {
	calls atomic.Int32
	err   error
}

func (p *countingPacer) Wait(context.Context) error {
	p.calls.Add(1)
	return p.err
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
