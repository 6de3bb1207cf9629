package app

import (
	"context"
	"fmt"

	"depth_spider/internal/db"
	"depth_spider/internal/models"
)

// Invalidate reverts root and every crawled page within maxDepth levels below
// it to the not-yet-crawled state. Pages are kept; only their links go.
func Invalidate(ctx context.Context, store db.PageStore, root *models.Page, maxDepth int) (int, error) {
	if root == nil {
		return 0, nil
	}

	// walkLevels works from the root value it is given, so the links read
	// here survive clearing the stored root.
	if err := store.ClearLinks(ctx, root.ID); err != nil {
		return 0, fmt.Errorf("clear root %s: %w", root.URL, err)
	}
	cleared := 1

	err := walkLevels(ctx, store, root, maxDepth, func(_ int, page *models.Page) error {
		if !page.HasLinks() {
			return nil
		}
		if err := store.ClearLinks(ctx, page.ID); err != nil {
			return fmt.Errorf("clear %s: %w", page.URL, err)
		}
		cleared++
		return nil
	})

	return cleared, err
}
