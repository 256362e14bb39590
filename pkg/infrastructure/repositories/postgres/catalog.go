package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/vsinha/picktrack/pkg/domain/entities"
)

func (s *Store) LookupParts(ctx context.Context, partNumbers []entities.PartNumber) (map[entities.PartNumber]*entities.CatalogEntry, error) {
	found := make(map[entities.PartNumber]*entities.CatalogEntry, len(partNumbers))
	if len(partNumbers) == 0 {
		return found, nil
	}

	keys := make([]string, len(partNumbers))
	for i, pn := range partNumbers {
		keys[i] = string(pn)
	}

	rows, err := s.q.Query(ctx, `SELECT part_number, description, location FROM parts_catalog WHERE part_number = ANY($1)`, keys)
	if err != nil {
		return nil, entities.WrapStore("lookup parts", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			pn    string
			entry entities.CatalogEntry
		)
		if err := rows.Scan(&pn, &entry.Description, &entry.Location); err != nil {
			return nil, entities.WrapStore("scan catalog entry", err)
		}
		entry.PartNumber = entities.PartNumber(pn)
		found[entry.PartNumber] = &entry
	}
	return found, entities.WrapStore("lookup parts", rows.Err())
}

// UpsertParts writes all entries in one batch round trip
func (s *Store) UpsertParts(ctx context.Context, entries []*entities.CatalogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
INSERT INTO parts_catalog (part_number, description, location) VALUES ($1, $2, $3)
ON CONFLICT (part_number) DO UPDATE
SET description = EXCLUDED.description,
    location = EXCLUDED.location`, string(e.PartNumber), e.Description, e.Location)
	}

	results := s.q.SendBatch(ctx, batch)
	for range entries {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return entities.WrapStore("upsert parts", err)
		}
	}
	return entities.WrapStore("upsert parts", results.Close())
}
