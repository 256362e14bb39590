package entities

import (
	"fmt"
	"time"
)

// Pick is one entry of the append-only pick ledger
type Pick struct {
	ID         string    `json:"id"`
	LineItemID string    `json:"line_item_id"`
	ToolID     string    `json:"tool_id"`
	QtyPicked  Quantity  `json:"qty_picked"`
	PickedBy   string    `json:"picked_by"`
	PickedAt   time.Time `json:"picked_at"`
	Notes      string    `json:"notes"`
}

// NewPick creates a validated Pick
func NewPick(lineItemID, toolID string, qty Quantity, pickedBy string, pickedAt time.Time, notes string) (*Pick, error) {
	if lineItemID == "" {
		return nil, fmt.Errorf("line item id cannot be empty")
	}
	if toolID == "" {
		return nil, fmt.Errorf("tool id cannot be empty")
	}
	if qty <= 0 {
		return nil, fmt.Errorf("%w: qty picked must be positive, got %d", ErrInvalidQuantity, qty)
	}

	return &Pick{
		LineItemID: lineItemID,
		ToolID:     toolID,
		QtyPicked:  qty,
		PickedBy:   pickedBy,
		PickedAt:   pickedAt,
		Notes:      notes,
	}, nil
}

// SumPicked totals qty_picked across picks
func SumPicked(picks []*Pick) Quantity {
	var total Quantity
	for _, p := range picks {
		total += p.QtyPicked
	}
	return total
}
