package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vsinha/picktrack/pkg/domain/entities"
	"github.com/vsinha/picktrack/pkg/domain/repositories"
)

func (s *Store) CreateOrder(ctx context.Context, order *entities.Order) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	_, err := s.q.Exec(ctx, `INSERT INTO orders (id, so_number, created_at) VALUES ($1, $2, $3)`,
		order.ID, order.SONumber, order.CreatedAt)
	return entities.WrapStore("create order", err)
}

func (s *Store) GetOrder(ctx context.Context, id string) (*entities.Order, error) {
	var o entities.Order
	err := s.q.QueryRow(ctx, `SELECT id, so_number, created_at FROM orders WHERE id = $1`, id).
		Scan(&o.ID, &o.SONumber, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", id, entities.ErrNotFound)
	}
	if err != nil {
		return nil, entities.WrapStore("get order", err)
	}
	return &o, nil
}

func (s *Store) FindOrderBySONumber(ctx context.Context, soNumber string) (*entities.Order, error) {
	var o entities.Order
	err := s.q.QueryRow(ctx, `SELECT id, so_number, created_at FROM orders WHERE so_number = $1`, soNumber).
		Scan(&o.ID, &o.SONumber, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("order with so number %s: %w", soNumber, entities.ErrNotFound)
	}
	if err != nil {
		return nil, entities.WrapStore("find order", err)
	}
	return &o, nil
}

func (s *Store) ListOrders(ctx context.Context) ([]*entities.Order, error) {
	return repositories.FetchAll(ctx, s.pageSize, func(ctx context.Context, offset, limit int) ([]*entities.Order, error) {
		rows, err := s.q.Query(ctx, `SELECT id, so_number, created_at FROM orders ORDER BY seq LIMIT $1 OFFSET $2`, limit, offset)
		if err != nil {
			return nil, entities.WrapStore("list orders", err)
		}
		defer rows.Close()

		var out []*entities.Order
		for rows.Next() {
			var o entities.Order
			if err := rows.Scan(&o.ID, &o.SONumber, &o.CreatedAt); err != nil {
				return nil, entities.WrapStore("scan order", err)
			}
			out = append(out, &o)
		}
		return out, entities.WrapStore("list orders", rows.Err())
	})
}

func (s *Store) CreateTool(ctx context.Context, tool *entities.Tool) error {
	if tool.ID == "" {
		tool.ID = uuid.NewString()
	}
	_, err := s.q.Exec(ctx, `INSERT INTO tools (id, order_id, tool_number, tool_model) VALUES ($1, $2, $3, $4)`,
		tool.ID, tool.OrderID, tool.ToolNumber, tool.ToolModel)
	return entities.WrapStore("create tool", err)
}

func (s *Store) ListTools(ctx context.Context, orderID string) ([]*entities.Tool, error) {
	return repositories.FetchAll(ctx, s.pageSize, func(ctx context.Context, offset, limit int) ([]*entities.Tool, error) {
		rows, err := s.q.Query(ctx, `
SELECT id, order_id, tool_number, tool_model FROM tools
WHERE order_id = $1 ORDER BY seq LIMIT $2 OFFSET $3`, orderID, limit, offset)
		if err != nil {
			return nil, entities.WrapStore("list tools", err)
		}
		defer rows.Close()

		var out []*entities.Tool
		for rows.Next() {
			var t entities.Tool
			if err := rows.Scan(&t.ID, &t.OrderID, &t.ToolNumber, &t.ToolModel); err != nil {
				return nil, entities.WrapStore("scan tool", err)
			}
			out = append(out, &t)
		}
		return out, entities.WrapStore("list tools", rows.Err())
	})
}
