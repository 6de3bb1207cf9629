package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"depth_spider/internal/models"
)

func TestSearchServesRepeatsFromStore(t *testing.T) {
	site := newTestSite(t, deepSite())
	app, _ := newTestApp(t, 1)
	ctx := context.Background()
	req := NewRequest(site.url("/"), 2)

	first, err := app.Search(ctx, req)
	require.NoError(t, err)
	require.Len(t, first, 4)

	hits := site.totalHits()

	second, err := app.Search(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, hits, site.totalHits())
}

func TestSearchMatchesWithoutSchemeOrTrailingSlash(t *testing.T) {
	site := newTestSite(t, deepSite())
	app, _ := newTestApp(t, 1)
	ctx := context.Background()

	_, err := app.Search(ctx, NewRequest(site.url("/"), 1))
	require.NoError(t, err)
	hits := site.totalHits()

	// Same normalized key, so the stored crawl answers it.
	results, err := app.Search(ctx, NewRequest(site.URL, 1))
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, hits, site.totalHits())
}

func TestSearchDepthZero(t *testing.T) {
	site := newTestSite(t, deepSite())
	app, _ := newTestApp(t, 1)

	results, err := app.Search(context.Background(), NewRequest(site.url("/"), 0))
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestSearchUnreachableStart(t *testing.T) {
	site := newTestSite(t, deepSite())
	app, _ := newTestApp(t, 1)

	results, err := app.Search(context.Background(), NewRequest(site.url("/nowhere"), 2))
	require.NoError(t, err)
	assert.Equal(t, []models.Result{}, results)
}

func TestSearchRejectsInvalidRequest(t *testing.T) {
	app, _ := newTestApp(t, 1)

	_, err := app.Search(context.Background(), NewRequest("not a url", -1))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"The url must be a valid URL."}, verr.Fields["url"])
	assert.Equal(t, []string{"The depth must be at least 0."}, verr.Fields["depth"])
}

func TestRefreshUnknownURL(t *testing.T) {
	site := newTestSite(t, deepSite())
	app, _ := newTestApp(t, 1)

	_, err := app.Refresh(context.Background(), NewRequest(site.url("/"), 2))
	assert.ErrorIs(t, err, ErrURLNotFound)
	assert.Zero(t, site.totalHits())
}

func TestRefreshPicksUpNewPages(t *testing.T) {
	site := newTestSite(t, deepSite())
	app, _ := newTestApp(t, 1)
	ctx := context.Background()
	req := NewRequest(site.url("/"), 2)

	before, err := app.Search(ctx, req)
	require.NoError(t, err)

	site.setLinks("/", []string{"/a", "/b", "/c"})
	site.setLinks("/c", []string{"/c/1"})
	site.setLinks("/c/1", []string{"/c/1/x"})

	// The stored answer is served until a refresh.
	stale, err := app.Search(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, before, stale)

	after, err := app.Refresh(ctx, req)
	require.NoError(t, err)

	got := urlsAt(after)
	for _, r := range before {
		assert.Equal(t, r.Depth, got[r.URL], r.URL)
	}
	assert.Equal(t, 1, got[site.url("/c")])
	assert.Equal(t, 2, got[site.url("/c/1")])
	assert.Len(t, after, 6)
}

func TestRefreshRecrawlsPageWithoutLinks(t *testing.T) {
	site := newTestSite(t, map[string][]string{
		"/":  {"/a"},
		"/a": {"/dead"},
	})
	app, store := newTestApp(t, 1)
	ctx := context.Background()
	req := NewRequest(site.url("/"), 2)

	results, err := app.Search(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.False(t, findPage(t, store, site.url("/")).HasLinks())

	site.setLinks("/dead", []string{"/a"})

	results, err = app.Refresh(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []models.Result{
		{URL: site.url("/a"), Depth: 1},
		{URL: site.url("/dead"), Depth: 2},
	}, results)
}

func TestLinklessPageIsFetchedAgainOnceItGainsLinks(t *testing.T) {
	site := newTestSite(t, map[string][]string{
		"/":  {"/a"},
		"/a": {},
	})
	app, store := newTestApp(t, 1)
	ctx := context.Background()
	req := NewRequest(site.url("/"), 1)

	results, err := app.Search(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.False(t, findPage(t, store, site.url("/a")).HasLinks())

	site.setLinks("/a", []string{"/b"})
	want := []models.Result{{URL: site.url("/a"), Depth: 1}}

	results, err = app.Search(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, want, results)
	assert.Equal(t, 2, site.hitCount("/a"))

	results, err = app.Refresh(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, want, results)
	assert.Equal(t, 3, site.hitCount("/a"))
}

func TestAppPingAndClose(t *testing.T) {
	app, _ := newTestApp(t, 1)

	assert.NoError(t, app.Ping(context.Background()))
	assert.NoError(t, app.Close())
}
