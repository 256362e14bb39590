package entities

import (
	"fmt"
	"slices"
)

// LineItem is a persisted pick requirement for one part (or one quantity tier
// of a part) on an order. A nil ToolIDs means the item applies to every tool.
type LineItem struct {
	ID             string     `json:"id"`
	OrderID        string     `json:"order_id"`
	PartNumber     PartNumber `json:"part_number"`
	Description    string     `json:"description"`
	Location       string     `json:"location"`
	QtyPerUnit     Quantity   `json:"qty_per_unit"`
	TotalQtyNeeded Quantity   `json:"total_qty_needed"`
	QtyOnOrder     Quantity   `json:"qty_on_order"`
	ToolIDs        []string   `json:"tool_ids"`
	AssemblyGroup  string     `json:"assembly_group"`
}

// IsShared reports whether the item applies to all tools of the order
func (li *LineItem) IsShared() bool {
	return li.ToolIDs == nil
}

// AppliesTo reports whether picks for toolID belong on this item
func (li *LineItem) AppliesTo(toolID string) bool {
	if li.ToolIDs == nil {
		return true
	}
	return slices.Contains(li.ToolIDs, toolID)
}

// ToolCount returns the number of tools the item covers given the order's tool count
func (li *LineItem) ToolCount(orderToolCount int) int {
	if li.ToolIDs == nil {
		return orderToolCount
	}
	return len(li.ToolIDs)
}

// ExpectedTotal is qty_per_unit times the number of tools covered
func (li *LineItem) ExpectedTotal(orderToolCount int) Quantity {
	return li.QtyPerUnit * Quantity(li.ToolCount(orderToolCount))
}

// Clone returns a deep copy
func (li *LineItem) Clone() *LineItem {
	c := *li
	if li.ToolIDs != nil {
		c.ToolIDs = slices.Clone(li.ToolIDs)
	}
	return &c
}

// ToolIDsValue is an explicitly-set tool_ids value; Value nil means "all tools"
type ToolIDsValue struct {
	Value []string
}

// LineItemPatch carries a partial update. Only non-nil fields are applied.
type LineItemPatch struct {
	QtyPerUnit     *Quantity
	TotalQtyNeeded *Quantity
	QtyOnOrder     *Quantity
	ToolIDs        *ToolIDsValue
	Description    *string
	Location       *string
}

// IsEmpty reports whether the patch changes nothing
func (p LineItemPatch) IsEmpty() bool {
	return p.QtyPerUnit == nil && p.TotalQtyNeeded == nil && p.QtyOnOrder == nil &&
		p.ToolIDs == nil && p.Description == nil && p.Location == nil
}

// Apply writes the present fields onto li
func (p LineItemPatch) Apply(li *LineItem) {
	if p.QtyPerUnit != nil {
		li.QtyPerUnit = *p.QtyPerUnit
	}
	if p.TotalQtyNeeded != nil {
		li.TotalQtyNeeded = *p.TotalQtyNeeded
	}
	if p.QtyOnOrder != nil {
		li.QtyOnOrder = *p.QtyOnOrder
	}
	if p.ToolIDs != nil {
		if p.ToolIDs.Value == nil {
			li.ToolIDs = nil
		} else {
			li.ToolIDs = slices.Clone(p.ToolIDs.Value)
		}
	}
	if p.Description != nil {
		li.Description = *p.Description
	}
	if p.Location != nil {
		li.Location = *p.Location
	}
}

// NewLineItem creates a validated LineItem
func NewLineItem(orderID string, partNumber PartNumber, qtyPerUnit, totalQtyNeeded Quantity, toolIDs []string) (*LineItem, error) {
	if string(partNumber) == "" {
		return nil, fmt.Errorf("part number cannot be empty")
	}
	if qtyPerUnit <= 0 {
		return nil, fmt.Errorf("qty per unit must be positive, got %d", qtyPerUnit)
	}
	if totalQtyNeeded < 0 {
		return nil, fmt.Errorf("total qty needed cannot be negative, got %d", totalQtyNeeded)
	}
	if toolIDs != nil && len(toolIDs) == 0 {
		return nil, fmt.Errorf("tool ids must be nil or non-empty")
	}

	return &LineItem{
		OrderID:        orderID,
		PartNumber:     partNumber,
		QtyPerUnit:     qtyPerUnit,
		TotalQtyNeeded: totalQtyNeeded,
		ToolIDs:        toolIDs,
	}, nil
}

// Ptr returns a pointer to q, for building patches
func (q Quantity) Ptr() *Quantity {
	return &q
}
