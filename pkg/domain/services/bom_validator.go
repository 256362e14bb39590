package services

import (
	"fmt"
	"strings"

	"github.com/vsinha/picktrack/pkg/domain/entities"
)

// BOMValidator checks the structure of an indented bill of materials
type BOMValidator struct{}

// NewBOMValidator creates a new BOM validator
func NewBOMValidator() *BOMValidator {
	return &BOMValidator{}
}

// ValidationResult contains the results of BOM validation
type ValidationResult struct {
	HasCycles      bool
	CyclePaths     [][]entities.PartNumber
	LevelJumps     []int
	DuplicateLines []entities.BOMRow
	Errors         []string
}

// Valid reports whether no problem was found
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// ValidateBOM walks the rows in document order, tracking the open ancestor
// path of each row
func (v *BOMValidator) ValidateBOM(rows []entities.BOMRow) *ValidationResult {
	result := &ValidationResult{
		CyclePaths:     make([][]entities.PartNumber, 0),
		LevelJumps:     make([]int, 0),
		DuplicateLines: make([]entities.BOMRow, 0),
		Errors:         make([]string, 0),
	}

	var path []entities.BOMRow
	seen := make(map[string]bool)

	for i, row := range rows {
		if i > 0 && row.Level > rows[i-1].Level+1 {
			result.LevelJumps = append(result.LevelJumps, i)
			result.Errors = append(result.Errors, fmt.Sprintf(
				"row %d: part %s jumps from level %d to %d", i+1, row.PartNumber, rows[i-1].Level, row.Level))
		}

		for len(path) > 0 && path[len(path)-1].Level >= row.Level {
			path = path[:len(path)-1]
		}

		if cycle := v.cycleThrough(path, row.PartNumber); cycle != nil {
			result.HasCycles = true
			result.CyclePaths = append(result.CyclePaths, cycle)
			result.Errors = append(result.Errors, fmt.Sprintf("BOM cycle detected: %v", cycle))
		}

		key := v.lineKey(path, row.PartNumber)
		if seen[key] {
			result.DuplicateLines = append(result.DuplicateLines, row)
			result.Errors = append(result.Errors, fmt.Sprintf(
				"row %d: part %s is listed twice under the same parent", i+1, row.PartNumber))
		} else {
			seen[key] = true
		}

		path = append(path, row)
	}

	return result
}

// cycleThrough returns the ancestor chain closed by part, or nil when part
// is not already one of its own ancestors
func (v *BOMValidator) cycleThrough(path []entities.BOMRow, part entities.PartNumber) []entities.PartNumber {
	for i, ancestor := range path {
		if ancestor.PartNumber != part {
			continue
		}
		cycle := make([]entities.PartNumber, 0, len(path)-i+1)
		for _, r := range path[i:] {
			cycle = append(cycle, r.PartNumber)
		}
		return append(cycle, part)
	}
	return nil
}

// lineKey identifies a part under one specific parent chain
func (v *BOMValidator) lineKey(path []entities.BOMRow, part entities.PartNumber) string {
	parts := make([]string, 0, len(path)+1)
	for _, r := range path {
		parts = append(parts, string(r.PartNumber))
	}
	return strings.Join(append(parts, string(part)), "/")
}
