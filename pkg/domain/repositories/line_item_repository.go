package repositories

import (
	"context"

	"github.com/vsinha/picktrack/pkg/domain/entities"
)

// LineItemRepository provides access to line items.
// CreateLineItem assigns the ID. UpdateLineItem applies only the fields present in the patch.
type LineItemRepository interface {
	CreateLineItem(ctx context.Context, item *entities.LineItem) error
	GetLineItem(ctx context.Context, id string) (*entities.LineItem, error)
	ListLineItems(ctx context.Context, orderID string) ([]*entities.LineItem, error)
	UpdateLineItem(ctx context.Context, id string, patch entities.LineItemPatch) error
	DeleteLineItem(ctx context.Context, id string) error
}
