package csv

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vsinha/picktrack/pkg/domain/entities"
)

// ParseBOMRows turns a tokenized indented BOM into ordered BOMRows.
//
// Problems are reported as warnings, never as errors: a missing header or
// quantity column, or any unparseable level/quantity cell, yields no rows.
func ParseBOMRows(table [][]string) ([]entities.BOMRow, []string) {
	headerIdx, cols, ok := FindHeader(table)
	if !ok {
		return nil, []string{(&entities.ParseError{Msg: "header row not found (no part number column)"}).Error()}
	}
	if cols.Qty < 0 {
		return nil, []string{(&entities.ParseError{Row: headerIdx + 1, Column: "qty", Msg: "quantity column not found"}).Error()}
	}

	var warnings []string
	if cols.Level < 0 {
		warnings = append(warnings, (&entities.ParseError{Row: headerIdx + 1, Column: "level", Msg: "level column not found, treating BOM as single level"}).Error())
	}
	if cols.Type < 0 {
		warnings = append(warnings, (&entities.ParseError{Row: headerIdx + 1, Column: "type", Msg: "type column not found, treating every row as purchased"}).Error())
	}

	var rows []entities.BOMRow
	for i := headerIdx + 1; i < len(table); i++ {
		record := table[i]
		rowNum := i + 1

		pn := cell(record, cols.PartNumber)
		if pn == "" {
			if !isBlank(record) {
				warnings = append(warnings, (&entities.ParseError{Row: rowNum, Column: "part number", Msg: "empty part number, row skipped"}).Error())
			}
			continue
		}

		level := 0
		if cols.Level >= 0 {
			lvl, err := ParseLevel(cell(record, cols.Level))
			if err != nil {
				return nil, append(warnings, (&entities.ParseError{Row: rowNum, Column: "level", Msg: err.Error()}).Error())
			}
			level = lvl
		}

		qtyCell := cell(record, cols.Qty)
		qty := decimal.Zero
		if qtyCell == "" {
			warnings = append(warnings, (&entities.ParseError{Row: rowNum, Column: "qty", Msg: "empty quantity, treated as 0"}).Error())
		} else {
			q, err := ParseLocaleDecimal(qtyCell)
			if err != nil {
				return nil, append(warnings, (&entities.ParseError{Row: rowNum, Column: "qty", Msg: err.Error()}).Error())
			}
			qty = q
		}

		itemType := entities.Purchased
		if cols.Type >= 0 {
			itemType = entities.ParseItemType(cell(record, cols.Type))
		}

		rows = append(rows, entities.BOMRow{
			Level:       level,
			PartNumber:  entities.PartNumber(pn),
			ItemType:    itemType,
			Qty:         qty,
			Description: cell(record, cols.Description),
		})
	}

	if len(rows) == 0 {
		return nil, append(warnings, (&entities.ParseError{Msg: "no data rows below header"}).Error())
	}
	return rows, warnings
}

// MaxLevel is the deepest indentation level accepted in a BOM
const MaxLevel = 64

// ParseLevel accepts plain integers ("2", "2.0" from numeric spreadsheet
// cells) and dot-indented levels ("..2" or ".."), up to MaxLevel.
func ParseLevel(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty level")
	}

	n, err := parseLevel(s)
	if err != nil {
		return 0, err
	}
	if n > MaxLevel {
		return 0, fmt.Errorf("level %q is deeper than %d", s, MaxLevel)
	}
	return n, nil
}

func parseLevel(s string) (int, error) {
	trimmed := strings.TrimLeft(s, ".")
	dots := len(s) - len(trimmed)
	if dots > 0 {
		if trimmed == "" {
			return dots, nil
		}
		n, err := strconv.Atoi(trimmed)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid level %q", s)
		}
		return n, nil
	}

	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("invalid level %q", s)
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f != math.Trunc(f) {
		return 0, fmt.Errorf("invalid level %q", s)
	}
	if f > MaxLevel {
		return MaxLevel + 1, nil
	}
	return int(f), nil
}

func isBlank(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
