package dto

import (
	"github.com/vsinha/picktrack/pkg/domain/entities"
)

// LineItemProgress is the pick status of one line item
type LineItemProgress struct {
	LineItemID     string              `json:"line_item_id"`
	PartNumber     entities.PartNumber `json:"part_number"`
	Description    string              `json:"description"`
	Location       string              `json:"location"`
	AssemblyGroup  string              `json:"assembly_group"`
	ToolIDs        []string            `json:"tool_ids"`
	QtyPerUnit     entities.Quantity   `json:"qty_per_unit"`
	TotalQtyNeeded entities.Quantity   `json:"total_qty_needed"`
	QtyPicked      entities.Quantity   `json:"qty_picked"`
	Remaining      entities.Quantity   `json:"remaining"`
}

// ToolProgress is the pick status of one tool across all line items
type ToolProgress struct {
	ToolID     string            `json:"tool_id"`
	ToolNumber string            `json:"tool_number"`
	Needed     entities.Quantity `json:"needed"`
	Picked     entities.Quantity `json:"picked"`
}

// ProgressReport summarizes picking on one order
type ProgressReport struct {
	OrderID         string             `json:"order_id"`
	SONumber        string             `json:"so_number"`
	LineItems       []LineItemProgress `json:"line_items"`
	Tools           []ToolProgress     `json:"tools"`
	TotalNeeded     entities.Quantity  `json:"total_needed"`
	TotalPicked     entities.Quantity  `json:"total_picked"`
	PercentComplete float64            `json:"percent_complete"`
}
