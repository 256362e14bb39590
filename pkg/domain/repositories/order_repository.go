package repositories

import (
	"context"
	"errors"

	"github.com/vsinha/picktrack/pkg/domain/entities"
)

// OrderRepository provides access to orders
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *entities.Order) error
	GetOrder(ctx context.Context, id string) (*entities.Order, error)
	FindOrderBySONumber(ctx context.Context, soNumber string) (*entities.Order, error)
	ListOrders(ctx context.Context) ([]*entities.Order, error)
}

// ToolRepository provides access to the tools produced under an order
type ToolRepository interface {
	CreateTool(ctx context.Context, tool *entities.Tool) error
	ListTools(ctx context.Context, orderID string) ([]*entities.Tool, error)
}

// ResolveOrder finds an order by ID, falling back to its SO number
func ResolveOrder(ctx context.Context, orders OrderRepository, ref string) (*entities.Order, error) {
	order, err := orders.GetOrder(ctx, ref)
	if err == nil || !errors.Is(err, entities.ErrNotFound) {
		return order, err
	}
	return orders.FindOrderBySONumber(ctx, ref)
}
