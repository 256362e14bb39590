package explosion

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vsinha/picktrack/pkg/domain/entities"
)

// assemblyFrame is the currently open ancestor at one level of the BOM
type assemblyFrame struct {
	partNumber entities.PartNumber
	effective  decimal.Decimal
}

// Flatten walks an indented BOM in document order and returns its leaf rows
// with quantities multiplied through every open ancestor.
//
// All leaves are returned regardless of item type; callers that only pick
// purchased parts filter with RetainPurchased. Leaves whose own quantity is
// not positive are dropped with a warning.
func Flatten(rows []entities.BOMRow) ([]entities.LeafPart, []string) {
	if len(rows) == 0 {
		return nil, []string{"bom has no rows"}
	}

	frames := make(map[int]assemblyFrame)
	var leaves []entities.LeafPart
	var warnings []string

	for i, row := range rows {
		parent := decimal.NewFromInt(1)
		if f, ok := closestAncestor(frames, row.Level); ok {
			parent = f.effective
		}

		effective := row.Qty.Mul(parent)

		frames[row.Level] = assemblyFrame{partNumber: row.PartNumber, effective: effective}
		for lvl := range frames {
			if lvl > row.Level {
				delete(frames, lvl)
			}
		}

		if i+1 < len(rows) && rows[i+1].Level > row.Level {
			continue
		}

		if !row.Qty.IsPositive() {
			warnings = append(warnings, fmt.Sprintf("part %s: quantity %s is not positive, skipped", row.PartNumber, row.Qty))
			continue
		}

		leaves = append(leaves, entities.LeafPart{
			PartNumber:    row.PartNumber,
			Description:   row.Description,
			Qty:           pickQuantity(effective),
			AssemblyGroup: assemblyGroup(row, frames),
			SourceType:    row.ItemType,
		})
	}

	return leaves, warnings
}

// closestAncestor returns the open frame with the deepest level above level.
// Only open frames are visited, so sparse level numbers cost nothing.
func closestAncestor(frames map[int]assemblyFrame, level int) (assemblyFrame, bool) {
	best, found := -1, false
	for lvl := range frames {
		if lvl < level && lvl > best {
			best, found = lvl, true
		}
	}
	return frames[best], found
}

// RetainPurchased keeps only leaves explicitly typed as purchased
func RetainPurchased(leaves []entities.LeafPart) []entities.LeafPart {
	out := make([]entities.LeafPart, 0, len(leaves))
	for _, leaf := range leaves {
		if leaf.SourceType == entities.Purchased {
			out = append(out, leaf)
		}
	}
	return out
}

// pickQuantity rounds fractional consumption up to whole units, never below one
func pickQuantity(effective decimal.Decimal) entities.Quantity {
	q := effective.Ceil().IntPart()
	if q < 1 {
		q = 1
	}
	return entities.Quantity(q)
}

func assemblyGroup(row entities.BOMRow, frames map[int]assemblyFrame) string {
	if row.Level <= 1 {
		return string(row.PartNumber)
	}
	if f, ok := frames[1]; ok {
		return string(f.partNumber)
	}
	if f, ok := frames[0]; ok {
		return string(f.partNumber)
	}
	return string(row.PartNumber)
}
