package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vsinha/picktrack/pkg/domain/entities"
	"github.com/vsinha/picktrack/pkg/domain/repositories"
)

const lineItemColumns = `id, order_id, part_number, description, location, qty_per_unit, total_qty_needed, tool_ids, assembly_group`

func (s *Store) lineItemSelect() string {
	if s.caps.QtyOnOrder {
		return lineItemColumns + `, qty_on_order`
	}
	return lineItemColumns + `, 0::bigint AS qty_on_order`
}

func scanLineItem(row pgx.Row) (*entities.LineItem, error) {
	var (
		li                        entities.LineItem
		pn                        string
		qtyPer, total, qtyOnOrder int64
	)
	if err := row.Scan(&li.ID, &li.OrderID, &pn, &li.Description, &li.Location, &qtyPer, &total, &li.ToolIDs, &li.AssemblyGroup, &qtyOnOrder); err != nil {
		return nil, err
	}
	li.PartNumber = entities.PartNumber(pn)
	li.QtyPerUnit = entities.Quantity(qtyPer)
	li.TotalQtyNeeded = entities.Quantity(total)
	li.QtyOnOrder = entities.Quantity(qtyOnOrder)
	return &li, nil
}

// CreateLineItem inserts a line item; qty_on_order is written only when the
// schema has the column.
func (s *Store) CreateLineItem(ctx context.Context, item *entities.LineItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}

	args := []any{
		item.ID, item.OrderID, string(item.PartNumber), item.Description, item.Location,
		int64(item.QtyPerUnit), int64(item.TotalQtyNeeded), item.ToolIDs, item.AssemblyGroup,
	}
	sql := `INSERT INTO line_items (` + lineItemColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if s.caps.QtyOnOrder {
		sql = `INSERT INTO line_items (` + lineItemColumns + `, qty_on_order) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
		args = append(args, int64(item.QtyOnOrder))
	}

	_, err := s.q.Exec(ctx, sql, args...)
	return entities.WrapStore("create line item", err)
}

func (s *Store) GetLineItem(ctx context.Context, id string) (*entities.LineItem, error) {
	li, err := scanLineItem(s.q.QueryRow(ctx, `SELECT `+s.lineItemSelect()+` FROM line_items WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("line item %s: %w", id, entities.ErrNotFound)
	}
	if err != nil {
		return nil, entities.WrapStore("get line item", err)
	}
	return li, nil
}

func (s *Store) ListLineItems(ctx context.Context, orderID string) ([]*entities.LineItem, error) {
	return repositories.FetchAll(ctx, s.pageSize, func(ctx context.Context, offset, limit int) ([]*entities.LineItem, error) {
		rows, err := s.q.Query(ctx, `SELECT `+s.lineItemSelect()+` FROM line_items
WHERE order_id = $1 ORDER BY seq LIMIT $2 OFFSET $3`, orderID, limit, offset)
		if err != nil {
			return nil, entities.WrapStore("list line items", err)
		}
		defer rows.Close()

		var out []*entities.LineItem
		for rows.Next() {
			li, err := scanLineItem(rows)
			if err != nil {
				return nil, entities.WrapStore("scan line item", err)
			}
			out = append(out, li)
		}
		return out, entities.WrapStore("list line items", rows.Err())
	})
}

// UpdateLineItem builds an UPDATE from the fields present in the patch
func (s *Store) UpdateLineItem(ctx context.Context, id string, patch entities.LineItemPatch) error {
	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.QtyPerUnit != nil {
		set("qty_per_unit", int64(*patch.QtyPerUnit))
	}
	if patch.TotalQtyNeeded != nil {
		set("total_qty_needed", int64(*patch.TotalQtyNeeded))
	}
	if patch.QtyOnOrder != nil && s.caps.QtyOnOrder {
		set("qty_on_order", int64(*patch.QtyOnOrder))
	}
	if patch.ToolIDs != nil {
		set("tool_ids", patch.ToolIDs.Value)
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.Location != nil {
		set("location", *patch.Location)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	tag, err := s.q.Exec(ctx, fmt.Sprintf(`UPDATE line_items SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args)), args...)
	if err != nil {
		return entities.WrapStore("update line item", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("line item %s: %w", id, entities.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteLineItem(ctx context.Context, id string) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM line_items WHERE id = $1`, id)
	if err != nil {
		return entities.WrapStore("delete line item", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("line item %s: %w", id, entities.ErrNotFound)
	}
	return nil
}
