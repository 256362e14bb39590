package repositories

import (
	"context"

	"github.com/vsinha/picktrack/pkg/domain/entities"
)

// CatalogRepository provides part master data. Missing parts are simply absent
// from the LookupParts result.
type CatalogRepository interface {
	LookupParts(ctx context.Context, partNumbers []entities.PartNumber) (map[entities.PartNumber]*entities.CatalogEntry, error)
	UpsertParts(ctx context.Context, entries []*entities.CatalogEntry) error
}
