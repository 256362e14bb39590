package entities

import (
	"fmt"
	"strings"
)

// PartNumber represents a unique part identifier
type PartNumber string

// Quantity represents an integer quantity value for discrete picking units
type Quantity int64

// ItemType classifies a BOM row by how the part is sourced
type ItemType int

const (
	Other ItemType = iota
	Purchased
	Assembly
)

// String method for ItemType enum
func (t ItemType) String() string {
	switch t {
	case Purchased:
		return "Purchased"
	case Assembly:
		return "Assembly"
	default:
		return "Other"
	}
}

// ParseItemType maps the type / make-buy cell of a BOM export to an ItemType.
// Unrecognised values are Other.
func ParseItemType(s string) ItemType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PUR", "PURCHASED", "BUY", "B", "P", "PURCH":
		return Purchased
	case "ASSY", "ASM", "ASSEMBLY", "MAKE", "M", "MFG", "SUB", "SUBASSEMBLY":
		return Assembly
	default:
		return Other
	}
}

// CatalogEntry is the part master data used to enrich line items
type CatalogEntry struct {
	PartNumber  PartNumber
	Description string
	Location    string
}

// NewCatalogEntry creates a validated CatalogEntry
func NewCatalogEntry(partNumber PartNumber, description, location string) (*CatalogEntry, error) {
	if strings.TrimSpace(string(partNumber)) == "" {
		return nil, fmt.Errorf("part number cannot be empty")
	}
	return &CatalogEntry{
		PartNumber:  partNumber,
		Description: description,
		Location:    location,
	}, nil
}
