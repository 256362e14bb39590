package repositories

import (
	"context"

	"github.com/vsinha/picktrack/pkg/domain/entities"
)

// PickRepository provides access to the pick ledger.
// Quantities are never updated in place: a pick is created, reassigned to
// another line item, or deleted.
type PickRepository interface {
	CreatePick(ctx context.Context, pick *entities.Pick) error
	GetPick(ctx context.Context, id string) (*entities.Pick, error)
	ListPicksByLineItems(ctx context.Context, lineItemIDs []string) ([]*entities.Pick, error)
	ReassignPick(ctx context.Context, pickID, lineItemID string) error
	DeletePick(ctx context.Context, id string) error
}
