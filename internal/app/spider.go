package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"depth_spider/internal/db"
	"depth_spider/internal/fetcher"
	"depth_spider/internal/models"
	urlqueue "depth_spider/internal/url_queue"
)

// edgeTrail is the list of parent->child edges collected on the way down a
// single branch. Siblings share the trail of their parent, so appending never
// mutates what another branch sees.
type edgeTrail struct {
	parentID string
	childID  string
	prev     *edgeTrail
}

func (t *edgeTrail) with(parentID, childID string) *edgeTrail {
	return &edgeTrail{parentID: parentID, childID: childID, prev: t}
}

// grouped returns the child ids of every parent on the trail, parents and
// children in the order they were walked.
func (t *edgeTrail) grouped() (parents []string, children map[string][]string) {
	var edges []*edgeTrail
	for e := t; e != nil; e = e.prev {
		edges = append(edges, e)
	}

	children = make(map[string][]string)
	for i := len(edges) - 1; i >= 0; i-- {
		e := edges[i]
		if _, ok := children[e.parentID]; !ok {
			parents = append(parents, e.parentID)
		}
		children[e.parentID] = append(children[e.parentID], e.childID)
	}

	return parents, children
}

// frame is what a worklist entry carries about the branch that reached it.
type frame struct {
	parent *models.Page
	edges  *edgeTrail
}

// Spider walks a site depth first and records the page graph it finds.
type Spider struct {
	store   db.PageStore
	fetcher fetcher.Fetcher
	workers int
	logger  *logrus.Entry
}

func NewSpider(store db.PageStore, f fetcher.Fetcher, workers int, logger *logrus.Entry) *Spider {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Spider{
		store:   store,
		fetcher: f,
		workers: workers,
		logger:  logger.WithField("component", "spider"),
	}
}

// Crawl stores every page reachable from startURL within maxDepth hops.
//
// Edges are written only when a branch walks past maxDepth. A branch that
// ends earlier, on a failed fetch, a page that is already crawled or a page
// without links, drops the edges it collected. Fetch failures never reach the
// caller; the returned error is either a store failure or the context ending.
func (s *Spider) Crawl(ctx context.Context, startURL string, maxDepth int) error {
	run := newFetchRun(ctx, s.fetcher, s.store, s.workers)
	defer run.close()

	log := s.logger.WithFields(logrus.Fields{"start_url": startURL, "max_depth": maxDepth})
	log.Info("crawl started")

	queue := urlqueue.NewURLQueue[frame]()
	queue.Add(startURL, 0, frame{})

	var fetched, flushed int

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		entry, ok := queue.Get()
		if !ok {
			break
		}

		if entry.Depth > maxDepth {
			n, err := s.flush(ctx, entry.Meta.edges)
			if err != nil {
				return err
			}
			flushed += n
			continue
		}

		key := urlqueue.NormalizeURL(entry.URL)

		existing, err := s.store.FindByURL(ctx, key)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("look up %s: %w", entry.URL, err)
		}
		if existing.HasLinks() {
			continue
		}

		outcome := run.get(entry.URL)
		if outcome.err != nil {
			if isCanceled(outcome.err) && ctx.Err() != nil {
				return ctx.Err()
			}
			log.WithError(outcome.err).WithField("url", entry.URL).Debug("fetch failed, branch dropped")
			continue
		}
		fetched++

		page := existing
		if page == nil {
			page, err = s.store.CreateIfAbsent(ctx, &models.Page{
				URL:           entry.URL,
				NormalizedURL: key,
				OriginDepth:   maxDepth - entry.Depth,
			})
			if err != nil {
				return fmt.Errorf("create page %s: %w", entry.URL, err)
			}
		}

		edges := entry.Meta.edges
		if entry.Meta.parent != nil {
			edges = edges.with(entry.Meta.parent.ID, page.ID)
		}

		// A page without links ends its branch short of the ceiling, so it
		// stays uncrawled and is fetched again by the next crawl.
		if len(outcome.links) == 0 {
			continue
		}

		if entry.Depth+1 <= maxDepth {
			run.prefetch(outcome.links)
		}

		queue.AddChildren(outcome.links, entry.Depth+1, frame{parent: page, edges: edges})
	}

	log.WithFields(logrus.Fields{"fetched": fetched, "edges": flushed}).Info("crawl finished")

	return nil
}

// flush writes the edges of a branch that reached the depth ceiling, one
// update per parent page.
func (s *Spider) flush(ctx context.Context, trail *edgeTrail) (int, error) {
	parents, children := trail.grouped()

	n := 0
	for _, parentID := range parents {
		if err := s.store.AppendLinks(ctx, parentID, children[parentID]); err != nil {
			return n, fmt.Errorf("append links of %s: %w", parentID, err)
		}
		n += len(children[parentID])
	}

	return n, nil
}
