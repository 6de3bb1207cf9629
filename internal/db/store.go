package db

import (
	"context"
	"errors"
	"fmt"

	"depth_spider/internal/config"
	"depth_spider/internal/models"
)

// ErrNotFound is returned when no page matches a lookup.
var ErrNotFound = errors.New("page not found")

// PageStore persists the crawled page graph keyed by normalized URL.
type PageStore interface {
	// CreateIfAbsent inserts page unless a page with the same normalized URL
	// exists, and returns the stored page either way.
	CreateIfAbsent(ctx context.Context, page *models.Page) (*models.Page, error)

	// FindByURL looks a page up by its normalized URL.
	FindByURL(ctx context.Context, normalizedURL string) (*models.Page, error)

	// FindByIDs returns the pages with the given ids in the order their ids
	// first appear. Unknown ids are skipped.
	FindByIDs(ctx context.Context, ids []string) ([]*models.Page, error)

	// AppendLinks adds childIDs to the page's outgoing links, skipping ids
	// already present, and marks the page crawled.
	AppendLinks(ctx context.Context, id string, childIDs []string) error

	// ClearLinks reverts the page to the not-yet-crawled state.
	ClearLinks(ctx context.Context, id string) error

	Ping(ctx context.Context) error
	Close() error
}

// Open builds the store selected by cfg.Driver.
func Open(cfg config.DBConfig) (PageStore, error) {
	switch cfg.Driver {
	case config.DriverMongo:
		return NewMongoDB(cfg)
	case config.DriverSQLite:
		return NewSQLite(cfg.SQLitePath)
	case config.DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.Driver)
	}
}

// uniqueIDs drops duplicates while keeping first-occurrence order.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// orderPages arranges pages to follow ids.
func orderPages(ids []string, pages []*models.Page) []*models.Page {
	byID := make(map[string]*models.Page, len(pages))
	for _, p := range pages {
		byID[p.ID] = p
	}

	ordered := make([]*models.Page, 0, len(pages))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered
}
