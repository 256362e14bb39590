package csv

import (
	"strings"
)

// ColumnMap holds the index of each recognised BOM column, -1 when absent.
// It is detected once per file and passed explicitly to row parsing.
type ColumnMap struct {
	Level       int
	PartNumber  int
	Type        int
	Qty         int
	Description int
}

var columnAliases = struct {
	level, partNumber, itemType, qty, description []string
}{
	level:       []string{"level", "lvl"},
	partNumber:  []string{"part number", "part_number", "pn", "ref_pn"},
	itemType:    []string{"type", "make/buy"},
	qty:         []string{"qty", "quantity", "qty per", "qty/assy"},
	description: []string{"description", "desc", "name"},
}

// DetectColumns matches header cells case-insensitively against the known
// aliases. The first matching cell wins for each column.
func DetectColumns(header []string) ColumnMap {
	cols := ColumnMap{Level: -1, PartNumber: -1, Type: -1, Qty: -1, Description: -1}

	for i, cell := range header {
		name := normalizeHeader(cell)
		switch {
		case cols.Level < 0 && contains(columnAliases.level, name):
			cols.Level = i
		case cols.PartNumber < 0 && contains(columnAliases.partNumber, name):
			cols.PartNumber = i
		case cols.Type < 0 && contains(columnAliases.itemType, name):
			cols.Type = i
		case cols.Qty < 0 && contains(columnAliases.qty, name):
			cols.Qty = i
		case cols.Description < 0 && contains(columnAliases.description, name):
			cols.Description = i
		}
	}
	return cols
}

// maxHeaderScan bounds how far down a sheet the header row may sit (title
// blocks above the table are common in exports)
const maxHeaderScan = 25

// FindHeader returns the index of the first row that names a part number column
func FindHeader(table [][]string) (int, ColumnMap, bool) {
	for i, row := range table {
		if i >= maxHeaderScan {
			break
		}
		cols := DetectColumns(row)
		if cols.PartNumber >= 0 {
			return i, cols, true
		}
	}
	return -1, ColumnMap{}, false
}

func normalizeHeader(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
