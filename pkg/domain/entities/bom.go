package entities

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// InstanceID identifies one BOM instantiation (one produced unit) within an import
type InstanceID string

// BOMRow is a single row of an indented bill of materials. Document order
// defines the hierarchy: a row is a child of the closest preceding row with a
// smaller level.
type BOMRow struct {
	Level       int
	PartNumber  PartNumber
	ItemType    ItemType
	Qty         decimal.Decimal
	Description string
}

// NewBOMRow creates a validated BOMRow
func NewBOMRow(level int, partNumber PartNumber, itemType ItemType, qty decimal.Decimal, description string) (*BOMRow, error) {
	if level < 0 {
		return nil, fmt.Errorf("level cannot be negative, got %d", level)
	}
	if string(partNumber) == "" {
		return nil, fmt.Errorf("part number cannot be empty")
	}

	return &BOMRow{
		Level:       level,
		PartNumber:  partNumber,
		ItemType:    itemType,
		Qty:         qty,
		Description: description,
	}, nil
}

// LeafPart is a pickable part produced by flattening one BOM.
// Qty is the effective quantity for one unit, already rounded up.
type LeafPart struct {
	PartNumber    PartNumber
	Description   string
	Qty           Quantity
	AssemblyGroup string
	SourceType    ItemType
}

// CandidateLineItem is one quantity tier of a part across the instances of an import
type CandidateLineItem struct {
	PartNumber    PartNumber
	Description   string
	AssemblyGroup string
	QtyPerUnit    Quantity
	InstanceIDs   []InstanceID
	IsShared      bool
}
