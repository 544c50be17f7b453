package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobsearch-crawler/internal/crawler"
	"github.com/JakeFAU/jobsearch-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/jobsearch-crawler/internal/policy/retry"
)

func TestFetcherBuildCollector(t *testing.T) {
	t.Parallel()

	f := New(Config{UserAgent: "jobcrawler-test", Timeout: time.Second})
	req := crawler.FetchRequest{URL: "https://example.com/job/1"}

	collector := f.buildCollector(req, time.Unix(0, 0), &crawler.FetchResponse{}, new(error))
	if collector.UserAgent != "jobcrawler-test" {
		t.Fatalf("expected user agent override, got %q", collector.UserAgent)
	}
	if !collector.ParseHTTPErrorResponse {
		t.Fatal("expected error responses to be parsed")
	}
	if !collector.AllowURLRevisit {
		t.Fatal("expected url revisits to be allowed")
	}
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	req := crawler.FetchRequest{
		URL:     "https://example.com/job/1",
		Headers: http.Header{"Accept-Language": {"en-AU"}},
	}
	var result crawler.FetchResponse
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, req, time.Unix(0, 0), &result, &fetchErr)
	if hooks.onRequest == nil || hooks.onResponse == nil || hooks.onError == nil {
		t.Fatal("expected hooks to be registered")
	}

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	if collyReq.Headers.Get("Accept-Language") != "en-AU" {
		t.Fatalf("expected header propagation, got %+v", collyReq.Headers)
	}

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusNotFound,
		Body:       []byte("gone"),
		Headers:    &http.Header{"X-Resp": {"ok"}},
		Request:    &colly.Request{URL: mustParseURL(t, "https://example.com/job/1")},
	})
	if result.StatusCode != http.StatusNotFound || string(result.Body) != "gone" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Headers.Get("X-Resp") != "ok" {
		t.Fatalf("expected headers copied, got %+v", result.Headers)
	}

	hooks.onError(nil, errors.New("boom"))
	if fetchErr == nil || fetchErr.Error() != "boom" {
		t.Fatalf("expected fetchErr set, got %v", fetchErr)
	}
}

func TestFetchReturnsStatusCodes(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/job/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>Python</body></html>"))
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "jobcrawler-test", Timeout: 2 * time.Second})
	ctx := context.Background()

	resp, err := f.Fetch(ctx, crawler.FetchRequest{URL: srv.URL + "/job/1"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(resp.Body), "Python")

	// Second visit of the same URL is a fresh fetch.
	resp, err = f.Fetch(ctx, crawler.FetchRequest{URL: srv.URL + "/job/1"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = f.Fetch(ctx, crawler.FetchRequest{URL: srv.URL + "/job/missing"})
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFetchTransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	f := New(Config{Timeout: time.Second})
	_, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: addr + "/job/1"})
	require.Error(t, err)
}

func TestFetchTimeoutIsRetried(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			time.Sleep(300 * time.Millisecond)
		}
		_, _ = w.Write([]byte("<html><body>Go</body></html>"))
	}))
	defer srv.Close()

	f := New(Config{Timeout: 100 * time.Millisecond})
	pf := crawler.NewPoliteFetcher(f, ratelimit.New(ratelimit.Config{}), retry.New(4, 10*time.Millisecond), nil)

	resp, err := pf.Fetch(context.Background(), srv.URL+"/job/1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, int32(2), hits.Load())
}

func TestCopyHeadersHandlesNil(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	collyReq := &colly.Request{Headers: &http.Header{}}
	f.copyHeaders(crawler.FetchRequest{}, collyReq)
	if len(*collyReq.Headers) != 0 {
		t.Fatalf("expected no headers to be copied, got %+v", *collyReq.Headers)
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
