package memory

import (
	"context"

	"github.com/vsinha/picktrack/pkg/domain/entities"
	"github.com/vsinha/picktrack/pkg/domain/repositories"
)

// CatalogRepository provides in-memory part master data
type CatalogRepository struct {
	entries    []entities.CatalogEntry
	entriesMap map[entities.PartNumber]int
}

// NewCatalogRepository creates a new in-memory catalog
func NewCatalogRepository(expectedEntries int) *CatalogRepository {
	return &CatalogRepository{
		entries:    make([]entities.CatalogEntry, 0, expectedEntries),
		entriesMap: make(map[entities.PartNumber]int, expectedEntries),
	}
}

// Verify interface compliance
var _ repositories.CatalogRepository = (*CatalogRepository)(nil)

// AddEntry inserts or replaces the entry for its part number
func (r *CatalogRepository) AddEntry(entry entities.CatalogEntry) {
	if index, exists := r.entriesMap[entry.PartNumber]; exists {
		r.entries[index] = entry
		return
	}
	r.entriesMap[entry.PartNumber] = len(r.entries)
	r.entries = append(r.entries, entry)
}

// LookupParts returns the entries known for the given part numbers
func (r *CatalogRepository) LookupParts(ctx context.Context, partNumbers []entities.PartNumber) (map[entities.PartNumber]*entities.CatalogEntry, error) {
	found := make(map[entities.PartNumber]*entities.CatalogEntry, len(partNumbers))
	for _, pn := range partNumbers {
		if index, exists := r.entriesMap[pn]; exists {
			entry := r.entries[index]
			found[pn] = &entry
		}
	}
	return found, nil
}

// UpsertParts saves entries, replacing existing ones by part number
func (r *CatalogRepository) UpsertParts(ctx context.Context, entries []*entities.CatalogEntry) error {
	for _, entry := range entries {
		r.AddEntry(*entry)
	}
	return nil
}

func (r *CatalogRepository) clone() *CatalogRepository {
	c := NewCatalogRepository(len(r.entries))
	for _, entry := range r.entries {
		c.AddEntry(entry)
	}
	return c
}
