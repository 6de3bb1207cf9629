// Package fetcher retrieves page bodies for the crawler.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"depth_spider/internal/config"
)

// ErrStatus is returned for responses outside the 2xx range.
var ErrStatus = errors.New("unexpected status")

const maxBodyBytes = 10 << 20

// Fetcher issues a single GET for a URL and returns the body of a successful
// response.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Options configures both backends.
type Options struct {
	Timeout      time.Duration
	UserAgent    string
	MaxRedirects int
}

// New builds the backend selected in cfg.
func New(cfg *config.SpiderConfig) (Fetcher, error) {
	opts := Options{
		Timeout:      cfg.Timeout(),
		UserAgent:    cfg.Fetcher.UserAgent,
		MaxRedirects: cfg.Logic.MaxRedirects,
	}

	switch cfg.Fetcher.Backend {
	case config.BackendHTTP:
		return NewHTTPFetcher(opts), nil
	case config.BackendColly:
		return NewCollyFetcher(opts), nil
	default:
		return nil, fmt.Errorf("unknown fetcher backend %q", cfg.Fetcher.Backend)
	}
}

func statusError(code int) error {
	return fmt.Errorf("%w: HTTP %d", ErrStatus, code)
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}
