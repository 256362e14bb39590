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

const pickColumns = `id, line_item_id, tool_id, qty_picked, picked_by, picked_at, notes`

func scanPick(row pgx.Row) (*entities.Pick, error) {
	var (
		p   entities.Pick
		qty int64
	)
	if err := row.Scan(&p.ID, &p.LineItemID, &p.ToolID, &qty, &p.PickedBy, &p.PickedAt, &p.Notes); err != nil {
		return nil, err
	}
	p.QtyPicked = entities.Quantity(qty)
	return &p, nil
}

func (s *Store) CreatePick(ctx context.Context, pick *entities.Pick) error {
	if pick.ID == "" {
		pick.ID = uuid.NewString()
	}
	_, err := s.q.Exec(ctx, `INSERT INTO picks (`+pickColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		pick.ID, pick.LineItemID, pick.ToolID, int64(pick.QtyPicked), pick.PickedBy, pick.PickedAt, pick.Notes)
	return entities.WrapStore("create pick", err)
}

func (s *Store) GetPick(ctx context.Context, id string) (*entities.Pick, error) {
	p, err := scanPick(s.q.QueryRow(ctx, `SELECT `+pickColumns+` FROM picks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("pick %s: %w", id, entities.ErrNotFound)
	}
	if err != nil {
		return nil, entities.WrapStore("get pick", err)
	}
	return p, nil
}

func (s *Store) ListPicksByLineItems(ctx context.Context, lineItemIDs []string) ([]*entities.Pick, error) {
	if len(lineItemIDs) == 0 {
		return nil, nil
	}
	return repositories.FetchAll(ctx, s.pageSize, func(ctx context.Context, offset, limit int) ([]*entities.Pick, error) {
		rows, err := s.q.Query(ctx, `SELECT `+pickColumns+` FROM picks
WHERE line_item_id = ANY($1) ORDER BY seq LIMIT $2 OFFSET $3`, lineItemIDs, limit, offset)
		if err != nil {
			return nil, entities.WrapStore("list picks", err)
		}
		defer rows.Close()

		var out []*entities.Pick
		for rows.Next() {
			p, err := scanPick(rows)
			if err != nil {
				return nil, entities.WrapStore("scan pick", err)
			}
			out = append(out, p)
		}
		return out, entities.WrapStore("list picks", rows.Err())
	})
}

func (s *Store) ReassignPick(ctx context.Context, pickID, lineItemID string) error {
	tag, err := s.q.Exec(ctx, `UPDATE picks SET line_item_id = $1 WHERE id = $2`, lineItemID, pickID)
	if err != nil {
		return entities.WrapStore("reassign pick", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pick %s: %w", pickID, entities.ErrNotFound)
	}
	return nil
}

func (s *Store) DeletePick(ctx context.Context, id string) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM picks WHERE id = $1`, id)
	if err != nil {
		return entities.WrapStore("delete pick", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pick %s: %w", id, entities.ErrNotFound)
	}
	return nil
}
