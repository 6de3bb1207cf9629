package app

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"

	"depth_spider/internal/db"
	"depth_spider/internal/fetcher"
	urlqueue "depth_spider/internal/url_queue"
)

// fetchOutcome is what a single fetch of a URL produced.
type fetchOutcome struct {
	links []string
	err   error

	// skipped is set when a prefetch found the page already crawled and did
	// not touch the network. The walk fetches again if it still needs it.
	skipped bool
}

type pendingFetch struct {
	done    chan struct{}
	outcome fetchOutcome
}

// fetchRun memoizes fetches by normalized URL for the lifetime of one crawl,
// so each URL goes over the network at most once per run. With more than one
// worker, the children of a page are fetched ahead of the walk.
type fetchRun struct {
	ctx     context.Context
	cancel  context.CancelFunc
	fetcher fetcher.Fetcher
	store   db.PageStore
	sem     *semaphore.Weighted
	workers int

	mu      sync.Mutex
	fetches map[string]*pendingFetch
	wg      sync.WaitGroup
}

func newFetchRun(ctx context.Context, f fetcher.Fetcher, store db.PageStore, workers int) *fetchRun {
	if workers < 1 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &fetchRun{
		ctx:     ctx,
		cancel:  cancel,
		fetcher: f,
		store:   store,
		sem:     semaphore.NewWeighted(int64(workers)),
		workers: workers,
		fetches: make(map[string]*pendingFetch),
	}
}

// claim returns the pending fetch for key and whether the caller created it
// and so must perform it.
func (r *fetchRun) claim(key string) (*pendingFetch, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.fetches[key]; ok {
		return p, false
	}

	p := &pendingFetch{done: make(chan struct{})}
	r.fetches[key] = p
	return p, true
}

// get blocks until urlStr has been fetched in this run.
func (r *fetchRun) get(urlStr string) fetchOutcome {
	key := urlqueue.NormalizeURL(urlStr)

	for {
		p, owner := r.claim(key)
		if owner {
			r.perform(urlStr, p)
		}

		select {
		case <-p.done:
		case <-r.ctx.Done():
			return fetchOutcome{err: r.ctx.Err()}
		}

		if !p.outcome.skipped {
			return p.outcome
		}
	}
}

// prefetch starts background fetches for links not yet seen in this run.
func (r *fetchRun) prefetch(links []string) {
	if r.workers < 2 {
		return
	}

	for _, link := range links {
		key := urlqueue.NormalizeURL(link)

		p, owner := r.claim(key)
		if !owner {
			continue
		}

		r.wg.Add(1)
		go func(link, key string) {
			defer r.wg.Done()

			// The walk never fetches a crawled page, so neither do we.
			if page, err := r.store.FindByURL(r.ctx, key); err == nil && page.HasLinks() {
				r.release(key, p)
				return
			}

			r.perform(link, p)
		}(link, key)
	}
}

// release drops an unperformed pending fetch so a later get starts over.
func (r *fetchRun) release(key string, p *pendingFetch) {
	r.mu.Lock()
	if r.fetches[key] == p {
		delete(r.fetches, key)
	}
	r.mu.Unlock()

	p.outcome = fetchOutcome{skipped: true}
	close(p.done)
}

func (r *fetchRun) perform(urlStr string, p *pendingFetch) {
	defer close(p.done)

	if err := r.sem.Acquire(r.ctx, 1); err != nil {
		p.outcome = fetchOutcome{err: err}
		return
	}
	defer r.sem.Release(1)

	body, err := r.fetcher.Fetch(r.ctx, urlStr)
	if err != nil {
		p.outcome = fetchOutcome{err: err}
		return
	}

	p.outcome = fetchOutcome{links: resolveLinks(urlStr, urlqueue.ExtractLinks(bytes.NewReader(body)))}
}

// close stops outstanding prefetches and waits for them to return.
func (r *fetchRun) close() {
	r.cancel()
	r.wg.Wait()
}

// resolveLinks makes every extracted link absolute against the page it was
// found on, dropping links that cannot be resolved and duplicates the
// resolution produced.
func resolveLinks(base string, links []string) []string {
	out := make([]string, 0, len(links))
	seen := make(map[string]struct{}, len(links))

	for _, link := range links {
		abs, err := urlqueue.ResolveURL(base, link)
		if err != nil {
			continue
		}
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	}

	return out
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
