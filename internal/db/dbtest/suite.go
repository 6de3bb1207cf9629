// Package dbtest holds the behavior every db.PageStore backend must share.
package dbtest

import (
	"context"
	"errors"
	"fmt"

	"github.com/stretchr/testify/suite"

	"depth_spider/internal/db"
	"depth_spider/internal/models"
)

// StoreSuite runs against whatever store NewStore returns. Backends embed it
// and provide NewStore; every test gets a fresh store.
type StoreSuite struct {
	suite.Suite

	NewStore func() db.PageStore
	store    db.PageStore
}

func (s *StoreSuite) SetupTest() {
	s.store = s.NewStore()
}

func (s *StoreSuite) TearDownTest() {
	if s.store != nil {
		s.Require().NoError(s.store.Close())
	}
}

func (s *StoreSuite) create(url string) *models.Page {
	p, err := s.store.CreateIfAbsent(context.Background(), &models.Page{
		URL:           "https://" + url,
		NormalizedURL: url,
		OriginDepth:   2,
	})
	s.Require().NoError(err)
	s.Require().NotEmpty(p.ID)
	return p
}

func (s *StoreSuite) TestCreateIfAbsent() {
	ctx := context.Background()

	first := s.create("example.com")
	s.Equal("https://example.com", first.URL)
	s.Equal("example.com", first.NormalizedURL)
	s.Equal(2, first.OriginDepth)
	s.False(first.Crawled)
	s.Empty(first.OutgoingLinks)
	s.NotZero(first.FirstScraped)

	again, err := s.store.CreateIfAbsent(ctx, &models.Page{
		URL:           "http://www.example.com/",
		NormalizedURL: "example.com",
		OriginDepth:   9,
	})
	s.Require().NoError(err)
	s.Equal(first.ID, again.ID)
	s.Equal("https://example.com", again.URL, "the first URL used to reach a page is kept")
	s.Equal(2, again.OriginDepth)
}

func (s *StoreSuite) TestCreateIfAbsentLeavesArgumentAlone() {
	arg := &models.Page{URL: "https://example.org", NormalizedURL: "example.org"}

	stored, err := s.store.CreateIfAbsent(context.Background(), arg)
	s.Require().NoError(err)
	s.NotEmpty(stored.ID)

	s.Empty(arg.ID)
	s.False(arg.Crawled)
	s.Zero(arg.FirstScraped)
}

func (s *StoreSuite) TestFindByURL() {
	ctx := context.Background()
	created := s.create("example.com/a")

	found, err := s.store.FindByURL(ctx, "example.com/a")
	s.Require().NoError(err)
	s.Equal(created.ID, found.ID)

	_, err = s.store.FindByURL(ctx, "example.com/missing")
	s.True(errors.Is(err, db.ErrNotFound), "got %v", err)
}

func (s *StoreSuite) TestFindByIDsKeepsRequestOrder() {
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, s.create(fmt.Sprintf("example.com/%d", i)).ID)
	}

	request := []string{ids[3], ids[1], "unknown", ids[3], ids[4], ids[0]}
	pages, err := s.store.FindByIDs(ctx, request)
	s.Require().NoError(err)

	var got []string
	for _, p := range pages {
		got = append(got, p.ID)
	}
	s.Equal([]string{ids[3], ids[1], ids[4], ids[0]}, got)

	pages, err = s.store.FindByIDs(ctx, nil)
	s.Require().NoError(err)
	s.Empty(pages)
}

func (s *StoreSuite) TestAppendLinksIsUnique() {
	ctx := context.Background()
	parent := s.create("example.com")
	a := s.create("example.com/a")
	b := s.create("example.com/b")

	s.Require().NoError(s.store.AppendLinks(ctx, parent.ID, []string{a.ID, b.ID}))
	s.Require().NoError(s.store.AppendLinks(ctx, parent.ID, []string{b.ID, a.ID, b.ID}))

	got, err := s.store.FindByURL(ctx, "example.com")
	s.Require().NoError(err)
	s.True(got.Crawled)
	s.Equal([]string{a.ID, b.ID}, got.OutgoingLinks)
}

func (s *StoreSuite) TestAppendNoLinksMarksCrawled() {
	ctx := context.Background()
	p := s.create("example.com/leaf")

	s.Require().NoError(s.store.AppendLinks(ctx, p.ID, nil))

	got, err := s.store.FindByURL(ctx, "example.com/leaf")
	s.Require().NoError(err)
	s.True(got.Crawled)
	s.Empty(got.OutgoingLinks)
}

func (s *StoreSuite) TestClearLinks() {
	ctx := context.Background()
	parent := s.create("example.com")
	child := s.create("example.com/a")

	s.Require().NoError(s.store.AppendLinks(ctx, parent.ID, []string{child.ID}))
	s.Require().NoError(s.store.ClearLinks(ctx, parent.ID))

	got, err := s.store.FindByURL(ctx, "example.com")
	s.Require().NoError(err)
	s.False(got.Crawled)
	s.Empty(got.OutgoingLinks)

	// The page record itself survives.
	pages, err := s.store.FindByIDs(ctx, []string{parent.ID, child.ID})
	s.Require().NoError(err)
	s.Len(pages, 2)
}

func (s *StoreSuite) TestUpdatesOnUnknownPage() {
	ctx := context.Background()

	err := s.store.AppendLinks(ctx, "no-such-page", []string{"x"})
	s.True(errors.Is(err, db.ErrNotFound), "got %v", err)

	err = s.store.ClearLinks(ctx, "no-such-page")
	s.True(errors.Is(err, db.ErrNotFound), "got %v", err)
}

func (s *StoreSuite) TestPing() {
	s.NoError(s.store.Ping(context.Background()))
}
