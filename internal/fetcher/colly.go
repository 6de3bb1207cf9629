package fetcher

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gocolly/colly"
)

// CollyFetcher fetches pages through a colly collector. Each call works on a
// clone of the base collector, so calls may run concurrently.
type CollyFetcher struct {
	base *colly.Collector
}

type collyResult struct {
	body   []byte
	status int
	err    error
}

func NewCollyFetcher(opts Options) *CollyFetcher {
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.MaxBodySize(maxBodyBytes),
	)
	if opts.UserAgent != "" {
		c.UserAgent = opts.UserAgent
	}
	// Non-2xx responses still reach OnResponse; Fetch decides what succeeds.
	c.ParseHTTPErrorResponse = true
	c.SetRequestTimeout(opts.Timeout)

	maxHops := opts.MaxRedirects
	c.RedirectHandler = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxHops {
			return fmt.Errorf("stopped after %d redirects", maxHops)
		}
		return nil
	}

	return &CollyFetcher{base: c}
}

// Fetch returns as soon as ctx ends. colly v1 requests carry no context, so a
// request already on the wire runs on until the request timeout and its
// result is discarded.
func (f *CollyFetcher) Fetch(ctx context.Context, urlStr string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := f.base.Clone()

	var res collyResult
	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})
	c.OnResponse(func(r *colly.Response) {
		res.status = r.StatusCode
		res.body = r.Body
	})

	done := make(chan collyResult, 1)
	go func() {
		res.err = c.Visit(urlStr)
		done <- res
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !isSuccess(res.status) {
			return nil, statusError(res.status)
		}
		return res.body, nil
	}
}
