package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"depth_spider/internal/models"
)

// Static and compile-time check to ensure Memory implements PageStore.
var _ PageStore = (*Memory)(nil)

// Memory is a PageStore kept in process memory. It is safe for concurrent use
// and backs tests and throwaway runs.
type Memory struct {
	mu       sync.RWMutex
	pages    map[string]*models.Page
	urlIndex map[string]*models.Page
}

func NewMemory() *Memory {
	return &Memory{
		pages:    make(map[string]*models.Page),
		urlIndex: make(map[string]*models.Page),
	}
}

func (m *Memory) CreateIfAbsent(_ context.Context, page *models.Page) (*models.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.urlIndex[page.NormalizedURL]; ok {
		return copyPage(existing), nil
	}

	id := uuid.New().String()
	for m.pages[id] != nil {
		id = uuid.New().String()
	}

	now := time.Now().Unix()
	stored := copyPage(page)
	stored.ID = id
	stored.Crawled = false
	stored.OutgoingLinks = nil
	stored.FirstScraped = now
	stored.LastScraped = now

	m.pages[stored.ID] = stored
	m.urlIndex[stored.NormalizedURL] = stored

	return copyPage(stored), nil
}

func (m *Memory) FindByURL(_ context.Context, normalizedURL string) (*models.Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.urlIndex[normalizedURL]
	if !ok {
		return nil, fmt.Errorf("find %q: %w", normalizedURL, ErrNotFound)
	}
	return copyPage(p), nil
}

func (m *Memory) FindByIDs(_ context.Context, ids []string) ([]*models.Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Page
	for _, id := range uniqueIDs(ids) {
		if p, ok := m.pages[id]; ok {
			out = append(out, copyPage(p))
		}
	}
	return out, nil
}

func (m *Memory) AppendLinks(_ context.Context, id string, childIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pages[id]
	if !ok {
		return fmt.Errorf("append links to %q: %w", id, ErrNotFound)
	}

	p.OutgoingLinks = uniqueIDs(append(p.OutgoingLinks, childIDs...))
	p.Crawled = true
	p.LastScraped = time.Now().Unix()
	return nil
}

func (m *Memory) ClearLinks(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pages[id]
	if !ok {
		return fmt.Errorf("clear links of %q: %w", id, ErrNotFound)
	}

	p.OutgoingLinks = nil
	p.Crawled = false
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

func copyPage(p *models.Page) *models.Page {
	c := *p
	if p.OutgoingLinks != nil {
		c.OutgoingLinks = append([]string(nil), p.OutgoingLinks...)
	}
	return &c
}
