package repositories

import (
	"context"
	"fmt"
)

// DefaultPageSize matches the row limit of the hosted store
const DefaultPageSize = 1000

// PageFunc fetches one page of at most limit rows starting at offset
type PageFunc[T any] func(ctx context.Context, offset, limit int) ([]T, error)

// FetchAll keeps requesting pages until a short page comes back
func FetchAll[T any](ctx context.Context, pageSize int, fetch PageFunc[T]) ([]T, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var all []T
	for offset := 0; ; offset += pageSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := fetch(ctx, offset, pageSize)
		if err != nil {
			return nil, fmt.Errorf("fetch page at offset %d: %w", offset, err)
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}
