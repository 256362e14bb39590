package events

import (
	"github.com/vsinha/picktrack/pkg/domain/entities"
)

const (
	LineItemCreatedEvent = "line_item.created"
	LineItemUpdatedEvent = "line_item.updated"
	LineItemDeletedEvent = "line_item.deleted"

	PickCreatedEvent      = "pick.created"
	PickReattributedEvent = "pick.reattributed"
	PickDeletedEvent      = "pick.deleted"
)

type LineItemCreated struct {
	LineItem entities.LineItem `json:"line_item"`
	Reason   string            `json:"reason"`
}

type LineItemUpdated struct {
	Before entities.LineItem `json:"before"`
	After  entities.LineItem `json:"after"`
	Reason string            `json:"reason"`
}

// LineItemDeleted is the tombstone written before a line item row is removed
type LineItemDeleted struct {
	LineItem entities.LineItem `json:"line_item"`
	Reason   string            `json:"reason"`
}

type PickCreated struct {
	Pick   entities.Pick `json:"pick"`
	Reason string        `json:"reason"`
}

type PickReattributed struct {
	Pick           entities.Pick `json:"pick"`
	FromLineItemID string        `json:"from_line_item_id"`
	ToLineItemID   string        `json:"to_line_item_id"`
	Reason         string        `json:"reason"`
}

// PickDeleted is the tombstone written before a pick row is removed
type PickDeleted struct {
	Pick       entities.Pick       `json:"pick"`
	PartNumber entities.PartNumber `json:"part_number"`
	Reason     string              `json:"reason"`
}
