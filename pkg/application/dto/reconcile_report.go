package dto

import (
	"slices"
	"time"

	"github.com/vsinha/picktrack/pkg/domain/entities"
)

// LineItemState is the reconciliation-relevant snapshot of a line item
type LineItemState struct {
	ID             string            `json:"id"`
	QtyPerUnit     entities.Quantity `json:"qty_per_unit"`
	TotalQtyNeeded entities.Quantity `json:"total_qty_needed"`
	ToolIDs        []string          `json:"tool_ids"`
}

// StateOf snapshots a line item
func StateOf(li *entities.LineItem) LineItemState {
	return LineItemState{
		ID:             li.ID,
		QtyPerUnit:     li.QtyPerUnit,
		TotalQtyNeeded: li.TotalQtyNeeded,
		ToolIDs:        slices.Clone(li.ToolIDs),
	}
}

// ReconcileEntry records one part's change, enough to reverse it by hand
type ReconcileEntry struct {
	PartNumber         entities.PartNumber `json:"part_number"`
	BeforeState        []LineItemState     `json:"before_state"`
	AfterState         []LineItemState     `json:"after_state"`
	MigratedPickIDs    []string            `json:"migrated_pick_ids"`
	DeletedLineItemIDs []string            `json:"deleted_line_item_ids"`
	CreatedLineItemIDs []string            `json:"created_line_item_ids,omitempty"`
	DeletedPickIDs     []string            `json:"deleted_pick_ids,omitempty"`
	Notes              []string            `json:"notes,omitempty"`
}

// Unresolved is a part that could not be reconciled and was left untouched
type Unresolved struct {
	PartNumber entities.PartNumber `json:"part_number"`
	Reason     string              `json:"reason"`
}

// ReconcileReport is the result of one reconciliation operation on one order.
// Executed is false for a dry-run preview.
type ReconcileReport struct {
	Operation  string           `json:"operation"`
	OrderID    string           `json:"order_id"`
	SONumber   string           `json:"so_number"`
	Executed   bool             `json:"executed"`
	Entries    []ReconcileEntry `json:"entries"`
	Unresolved []Unresolved     `json:"unresolved"`
}

// ExcessPick is a pick recorded against a line item that does not cover its tool
type ExcessPick struct {
	PickID          string              `json:"pick_id"`
	LineItemID      string              `json:"line_item_id"`
	PartNumber      entities.PartNumber `json:"part_number"`
	ToolID          string              `json:"tool_id"`
	ToolNumber      string              `json:"tool_number"`
	QtyPicked       entities.Quantity   `json:"qty_picked"`
	PickedBy        string              `json:"picked_by"`
	PickedAt        time.Time           `json:"picked_at"`
	Notes           string              `json:"notes,omitempty"`
	LineItemToolIDs []string            `json:"line_item_tool_ids"`
	// ReattributeTo is a sibling tier that covers the tool, if there is one
	ReattributeTo string `json:"reattribute_to,omitempty"`
}

// Violation is an invariant violation as shown to operators
type Violation struct {
	Kind       entities.ViolationKind `json:"kind"`
	LineItemID string                 `json:"line_item_id,omitempty"`
	PartNumber entities.PartNumber    `json:"part_number"`
	Message    string                 `json:"message"`
}

// AuditReport lists every invariant violation found on an order
type AuditReport struct {
	OrderID    string      `json:"order_id"`
	SONumber   string      `json:"so_number"`
	Violations []Violation `json:"violations"`
}

// BatchResult collects per-order outcomes of a batch run. Failed orders do
// not affect the others.
type BatchResult struct {
	Reports []*ReconcileReport `json:"reports"`
	Failed  map[string]string  `json:"failed"`
}
