package repositories

import (
	"context"

	"github.com/vsinha/picktrack/pkg/infrastructure/events"
)

// Capabilities describes optional schema features of a store, determined once
// when the store is opened.
type Capabilities struct {
	// QtyOnOrder is true when line_items carries a qty_on_order column
	QtyOnOrder bool
}

// Store groups the repositories of one backing store
type Store interface {
	Orders() OrderRepository
	Tools() ToolRepository
	LineItems() LineItemRepository
	Picks() PickRepository
	Catalog() CatalogRepository
	Audit() events.EventStore
	Capabilities() Capabilities

	// RunInTx runs fn against a transactional view of the store. Nothing fn
	// writes is visible unless fn returns nil.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
