package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"depth_spider/internal/config"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<a href="/next">next</a><p>` + r.UserAgent() + `</p>`))
	})
	mux.HandleFunc("/created", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("accepted"))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	mux.HandleFunc("/latin1", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte{'c', 'a', 'f', 0xe9})
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(500 * time.Millisecond)
		_, _ = w.Write([]byte("late"))
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testOptions() Options {
	return Options{Timeout: 200 * time.Millisecond, UserAgent: "depth-spider-test", MaxRedirects: 3}
}

func TestHTTPFetcher(t *testing.T) {
	srv := newTestServer(t)
	f := NewHTTPFetcher(testOptions())
	ctx := context.Background()

	body, err := f.Fetch(ctx, srv.URL+"/ok")
	require.NoError(t, err)
	assert.Contains(t, string(body), `href="/next"`)
	assert.Contains(t, string(body), "depth-spider-test")

	body, err = f.Fetch(ctx, srv.URL+"/created")
	require.NoError(t, err)
	assert.Equal(t, "accepted", string(body))

	body, err = f.Fetch(ctx, srv.URL+"/latin1")
	require.NoError(t, err)
	assert.Equal(t, "café", string(body))

	_, err = f.Fetch(ctx, srv.URL+"/missing")
	assert.True(t, errors.Is(err, ErrStatus), "got %v", err)

	_, err = f.Fetch(ctx, srv.URL+"/slow")
	assert.Error(t, err)

	_, err = f.Fetch(ctx, srv.URL+"/loop")
	assert.Error(t, err)

	_, err = f.Fetch(ctx, "http://127.0.0.1:1/unreachable")
	assert.Error(t, err)
}

func TestHTTPFetcherHonorsContext(t *testing.T) {
	srv := newTestServer(t)
	f := NewHTTPFetcher(Options{Timeout: 5 * time.Second, MaxRedirects: 3})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, srv.URL+"/ok")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCollyFetcher(t *testing.T) {
	srv := newTestServer(t)
	f := NewCollyFetcher(testOptions())
	ctx := context.Background()

	body, err := f.Fetch(ctx, srv.URL+"/ok")
	require.NoError(t, err)
	assert.Contains(t, string(body), `href="/next"`)
	assert.Contains(t, string(body), "depth-spider-test")

	// Revisiting the same URL is allowed.
	_, err = f.Fetch(ctx, srv.URL+"/ok")
	require.NoError(t, err)

	_, err = f.Fetch(ctx, srv.URL+"/missing")
	assert.True(t, errors.Is(err, ErrStatus), "got %v", err)

	_, err = f.Fetch(ctx, srv.URL+"/slow")
	assert.Error(t, err)
}

func TestCollyFetcherCapsRedirects(t *testing.T) {
	srv := newTestServer(t)
	f := NewCollyFetcher(testOptions())

	_, err := f.Fetch(context.Background(), srv.URL+"/loop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stopped after 3 redirects")
}

func TestCollyFetcherReturnsWhenContextEnds(t *testing.T) {
	srv := newTestServer(t)
	f := NewCollyFetcher(Options{Timeout: 5 * time.Second, MaxRedirects: 3})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := f.Fetch(ctx, srv.URL+"/slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 400*time.Millisecond)

	canceled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	_, err = f.Fetch(canceled, srv.URL+"/ok")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew(t *testing.T) {
	cfg := config.Default()

	f, err := New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &HTTPFetcher{}, f)

	cfg.Fetcher.Backend = config.BackendColly
	f, err = New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &CollyFetcher{}, f)

	cfg.Fetcher.Backend = "wget"
	_, err = New(cfg)
	assert.Error(t, err)
}
