package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"depth_spider/internal/config"
	"depth_spider/internal/db"
	"depth_spider/internal/fetcher"
	"depth_spider/internal/models"
	urlqueue "depth_spider/internal/url_queue"
)

// SpiderApp answers crawl and refresh requests from the page store, crawling
// when the store does not have the answer yet.
type SpiderApp struct {
	config *config.SpiderConfig
	db     db.PageStore
	spider *Spider
	logger *logrus.Entry
}

func NewSpiderApp(cfg *config.SpiderConfig, logger *logrus.Entry) (*SpiderApp, error) {
	store, err := db.Open(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.DB.Driver, err)
	}

	f, err := fetcher.New(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return NewSpiderAppWith(cfg, store, f, logger), nil
}

// NewSpiderAppWith wires an app around an existing store and fetcher.
func NewSpiderAppWith(cfg *config.SpiderConfig, store db.PageStore, f fetcher.Fetcher, logger *logrus.Entry) *SpiderApp {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	return &SpiderApp{
		config: cfg,
		db:     store,
		spider: NewSpider(store, f, cfg.Logic.MaxConcurrentWorkers, logger),
		logger: logger,
	}
}

// Search returns the pages below req.URL. A URL that was crawled before is
// answered from the store without touching the network.
func (s *SpiderApp) Search(ctx context.Context, req Request) ([]models.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	root, err := s.findRoot(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	if root.HasLinks() {
		s.logger.WithField("url", req.URL).Debug("serving from store")
		return Read(ctx, s.db, root, req.MaxDepth())
	}

	return s.crawlAndRead(ctx, req)
}

// Refresh drops what is stored below req.URL and crawls it again. The URL
// must have been requested before.
func (s *SpiderApp) Refresh(ctx context.Context, req Request) ([]models.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	root, err := s.findRoot(ctx, req.URL)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, ErrURLNotFound
	}

	cleared, err := Invalidate(ctx, s.db, root, req.MaxDepth())
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"url": req.URL, "cleared": cleared}).Info("cache invalidated")

	return s.crawlAndRead(ctx, req)
}

func (s *SpiderApp) crawlAndRead(ctx context.Context, req Request) ([]models.Result, error) {
	if err := s.spider.Crawl(ctx, req.URL, req.MaxDepth()); err != nil {
		return nil, err
	}

	root, err := s.findRoot(ctx, req.URL)
	if err != nil {
		return nil, err
	}
	if root == nil {
		// The start page itself could not be fetched.
		return []models.Result{}, nil
	}

	return Read(ctx, s.db, root, req.MaxDepth())
}

// findRoot returns nil without error when nothing is stored for rawURL.
func (s *SpiderApp) findRoot(ctx context.Context, rawURL string) (*models.Page, error) {
	page, err := s.db.FindByURL(ctx, urlqueue.NormalizeURL(rawURL))
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("look up %s: %w", rawURL, err)
	}
	return page, nil
}

func (s *SpiderApp) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *SpiderApp) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}
