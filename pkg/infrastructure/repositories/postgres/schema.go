package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const baseSchema = `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  so_number TEXT NOT NULL UNIQUE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  seq BIGSERIAL
);

CREATE TABLE IF NOT EXISTS tools (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  tool_number TEXT NOT NULL,
  tool_model TEXT NOT NULL DEFAULT '',
  seq BIGSERIAL
);

CREATE TABLE IF NOT EXISTS line_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  part_number TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  location TEXT NOT NULL DEFAULT '',
  qty_per_unit BIGINT NOT NULL CHECK (qty_per_unit > 0),
  total_qty_needed BIGINT NOT NULL CHECK (total_qty_needed >= 0),
  tool_ids TEXT[],
  assembly_group TEXT NOT NULL DEFAULT '',
  seq BIGSERIAL
);
CREATE INDEX IF NOT EXISTS line_items_order_idx ON line_items (order_id, seq);

CREATE TABLE IF NOT EXISTS picks (
  id TEXT PRIMARY KEY,
  line_item_id TEXT NOT NULL REFERENCES line_items(id),
  tool_id TEXT NOT NULL,
  qty_picked BIGINT NOT NULL CHECK (qty_picked > 0),
  picked_by TEXT NOT NULL DEFAULT '',
  picked_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  notes TEXT NOT NULL DEFAULT '',
  seq BIGSERIAL
);
CREATE INDEX IF NOT EXISTS picks_line_item_idx ON picks (line_item_id, seq);

CREATE TABLE IF NOT EXISTS parts_catalog (
  part_number TEXT PRIMARY KEY,
  description TEXT NOT NULL DEFAULT '',
  location TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS audit_events (
  id TEXT PRIMARY KEY,
  stream_id TEXT NOT NULL,
  version INT NOT NULL,
  event_type TEXT NOT NULL,
  payload JSONB NOT NULL,
  occurred_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (stream_id, version)
);
`

const qtyOnOrderColumn = `ALTER TABLE line_items ADD COLUMN IF NOT EXISTS qty_on_order BIGINT NOT NULL DEFAULT 0;`

// Migrate creates the tables if they do not exist. withQtyOnOrder adds the
// optional qty_on_order column; older deployments run without it.
func Migrate(ctx context.Context, pool *pgxpool.Pool, withQtyOnOrder bool) error {
	if _, err := pool.Exec(ctx, baseSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if withQtyOnOrder {
		if _, err := pool.Exec(ctx, qtyOnOrderColumn); err != nil {
			return fmt.Errorf("add qty_on_order: %w", err)
		}
	}
	return nil
}

// Migrate applies the schema using the store's pool
func (s *Store) Migrate(ctx context.Context, withQtyOnOrder bool) error {
	if err := Migrate(ctx, s.pool, withQtyOnOrder); err != nil {
		return err
	}
	caps, err := probeCapabilities(ctx, s.pool)
	if err != nil {
		return err
	}
	s.caps = caps
	return nil
}
