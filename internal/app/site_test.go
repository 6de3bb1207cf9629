package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"depth_spider/internal/config"
	"depth_spider/internal/db"
	"depth_spider/internal/fetcher"
	"depth_spider/internal/models"
	urlqueue "depth_spider/internal/url_queue"
)

// testSite serves pages whose bodies are nothing but anchors. Paths missing
// from links answer 404, paths in hang never answer before the client gives
// up.
type testSite struct {
	*httptest.Server

	mu    sync.Mutex
	links map[string][]string
	hang  map[string]bool
	hits  map[string]int
}

func newTestSite(t *testing.T, links map[string][]string, hang ...string) *testSite {
	t.Helper()

	site := &testSite{
		links: links,
		hang:  make(map[string]bool),
		hits:  make(map[string]int),
	}
	for _, p := range hang {
		site.hang[p] = true
	}

	site.Server = httptest.NewServer(http.HandlerFunc(site.serve))
	t.Cleanup(site.Close)
	return site
}

func (s *testSite) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	hrefs, ok := s.links[r.URL.Path]
	hang := s.hang[r.URL.Path]
	s.mu.Unlock()

	if hang {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, href := range hrefs {
		fmt.Fprintf(&b, `<a href="%s">%s</a>`, href, href)
	}
	b.WriteString("</body></html>")
	_, _ = io.WriteString(w, b.String())
}

func (s *testSite) setLinks(path string, hrefs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[path] = hrefs
}

func (s *testSite) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *testSite) totalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.hits {
		n += c
	}
	return n
}

func (s *testSite) url(path string) string {
	return s.URL + path
}

// deepSite is three levels deep below /.
func deepSite() map[string][]string {
	return map[string][]string{
		"/":      {"/a", "/b"},
		"/a":     {"/a/1"},
		"/b":     {"/b/1"},
		"/a/1":   {"/a/1/x"},
		"/b/1":   {"/b/1/x"},
		"/a/1/x": {},
		"/b/1/x": {},
	}
}

func quietLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func testFetcher() fetcher.Fetcher {
	return fetcher.NewHTTPFetcher(fetcher.Options{
		Timeout:      300 * time.Millisecond,
		UserAgent:    "depth-spider-test",
		MaxRedirects: 5,
	})
}

func newTestApp(t *testing.T, workers int) (*SpiderApp, *db.Memory) {
	t.Helper()

	cfg := config.Default()
	cfg.DB.Driver = config.DriverMemory
	cfg.Logic.MaxConcurrentWorkers = workers

	store := db.NewMemory()
	return NewSpiderAppWith(cfg, store, testFetcher(), quietLogger()), store
}

func findPage(t *testing.T, store db.PageStore, rawURL string) *models.Page {
	t.Helper()

	page, err := store.FindByURL(context.Background(), urlqueue.NormalizeURL(rawURL))
	require.NoError(t, err)
	return page
}
