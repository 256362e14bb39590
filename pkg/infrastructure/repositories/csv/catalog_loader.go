package csv

import (
	"fmt"

	"github.com/vsinha/picktrack/pkg/domain/entities"
)

// LoadCatalog loads part master data from a delimited file with part number,
// description and location columns
func LoadCatalog(filename string) ([]*entities.CatalogEntry, error) {
	table, err := LoadTable(filename)
	if err != nil {
		return nil, err
	}
	return ParseCatalog(table)
}

// ParseCatalog reads catalog entries from a tokenized table
func ParseCatalog(table [][]string) ([]*entities.CatalogEntry, error) {
	if len(table) < 2 {
		return nil, fmt.Errorf("catalog must have header and at least one data row")
	}

	header := table[0]
	cols := DetectColumns(header)
	if cols.PartNumber < 0 {
		return nil, fmt.Errorf("catalog header has no part number column: %v", header)
	}
	locationCol := -1
	for i, h := range header {
		switch normalizeHeader(h) {
		case "location", "default_location", "default location", "bin", "loc":
			locationCol = i
		}
		if locationCol >= 0 {
			break
		}
	}

	var entries []*entities.CatalogEntry
	for i, record := range table[1:] {
		pn := cell(record, cols.PartNumber)
		if pn == "" {
			continue
		}
		entry, err := entities.NewCatalogEntry(entities.PartNumber(pn), cell(record, cols.Description), cell(record, locationCol))
		if err != nil {
			return nil, fmt.Errorf("catalog row %d: %w", i+2, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
