package entities

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrConfirmationRequired = errors.New("operator confirmation required")
	ErrToolNotApplicable    = errors.New("tool is not covered by line item")
	ErrInvalidQuantity      = errors.New("invalid quantity")
)

// ParseError describes an input problem found while reading a BOM table.
// The flattener turns it into a warning instead of failing the import.
type ParseError struct {
	Row    int
	Column string
	Msg    string
}

func (e *ParseError) Error() string {
	switch {
	case e.Row > 0 && e.Column != "":
		return fmt.Sprintf("row %d, column %s: %s", e.Row, e.Column, e.Msg)
	case e.Row > 0:
		return fmt.Sprintf("row %d: %s", e.Row, e.Msg)
	case e.Column != "":
		return fmt.Sprintf("column %s: %s", e.Column, e.Msg)
	default:
		return e.Msg
	}
}

// MappingError is a per-part reconciliation failure; other parts still proceed
type MappingError struct {
	PartNumber PartNumber
	Msg        string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("part %s: %s", e.PartNumber, e.Msg)
}

// StoreError wraps a failure of the external store. It aborts the current order.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// WrapStore wraps err as a StoreError unless it is nil or already one
func WrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// ViolationKind names the invariant an InvariantViolation breaks
type ViolationKind string

const (
	ViolationExcessPick       ViolationKind = "excess_pick"
	ViolationTotalMismatch    ViolationKind = "total_mismatch"
	ViolationDuplicateShared  ViolationKind = "duplicate_shared"
	ViolationForeignTool      ViolationKind = "foreign_tool"
	ViolationOverlappingTiers ViolationKind = "overlapping_tiers"
)

// InvariantViolation is reported by audits and never corrected automatically
type InvariantViolation struct {
	Kind       ViolationKind
	LineItemID string
	PartNumber PartNumber
	Msg        string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("%s on %s (line item %s): %s", e.Kind, e.PartNumber, e.LineItemID, e.Msg)
}
