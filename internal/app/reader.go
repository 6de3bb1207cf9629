package app

import (
	"context"
	"fmt"

	"depth_spider/internal/db"
	"depth_spider/internal/models"
)

// Read flattens the stored graph below root into (url, depth) pairs, level by
// level, for at most maxDepth levels. The root itself is not part of the
// result. A page reachable on several levels is reported on each of them.
func Read(ctx context.Context, store db.PageStore, root *models.Page, maxDepth int) ([]models.Result, error) {
	results := []models.Result{}

	err := walkLevels(ctx, store, root, maxDepth, func(level int, page *models.Page) error {
		results = append(results, models.Result{URL: page.URL, Depth: level})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}

// walkLevels visits the pages below root breadth first. The frontier of the
// next level is taken from each page's links before visit is called on it.
func walkLevels(ctx context.Context, store db.PageStore, root *models.Page, maxDepth int, visit func(level int, page *models.Page) error) error {
	if root == nil {
		return nil
	}

	frontier := root.OutgoingLinks

	for level := 1; len(frontier) > 0 && level <= maxDepth; level++ {
		pages, err := store.FindByIDs(ctx, frontier)
		if err != nil {
			return fmt.Errorf("load level %d: %w", level, err)
		}

		frontier = nil
		for _, page := range pages {
			if page.HasLinks() {
				frontier = append(frontier, page.OutgoingLinks...)
			}
			if err := visit(level, page); err != nil {
				return err
			}
		}
	}

	return nil
}
