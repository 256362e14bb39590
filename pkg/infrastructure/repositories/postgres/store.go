package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/vsinha/picktrack/pkg/domain/entities"
	"github.com/vsinha/picktrack/pkg/domain/repositories"
	"github.com/vsinha/picktrack/pkg/infrastructure/events"
)

// querier is the part of the pgx API shared by the pool and a transaction
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Store is a repositories.Store backed by PostgreSQL
type Store struct {
	pool     *pgxpool.Pool
	q        querier
	caps     repositories.Capabilities
	pageSize int
	logger   *zap.Logger
	inTx     bool
}

type options struct {
	pageSize   int
	logger     *zap.Logger
	qtyOnOrder *bool
}

// Option configures Open
type Option func(*options)

// WithPageSize sets the LIMIT used when listing
func WithPageSize(n int) Option {
	return func(o *options) { o.pageSize = n }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithQtyOnOrder skips the schema probe and forces the qty_on_order capability
func WithQtyOnOrder(enabled bool) Option {
	return func(o *options) { o.qtyOnOrder = &enabled }
}

// Open connects to the database and determines the schema capabilities once
func Open(ctx context.Context, dbURL string, opts ...Option) (*Store, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("db url missing")
	}
	o := options{pageSize: repositories.DefaultPageSize, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	s := &Store{pool: pool, q: pool, pageSize: o.pageSize, logger: o.logger}
	if o.qtyOnOrder != nil {
		s.caps.QtyOnOrder = *o.qtyOnOrder
	} else {
		caps, err := probeCapabilities(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		s.caps = caps
	}

	s.logger.Info("postgres store opened",
		zap.Bool("qty_on_order", s.caps.QtyOnOrder),
		zap.Int("page_size", s.pageSize),
	)
	return s, nil
}

// Close releases the connection pool
func (s *Store) Close() {
	if s.pool != nil && !s.inTx {
		s.pool.Close()
	}
}

func probeCapabilities(ctx context.Context, q querier) (repositories.Capabilities, error) {
	var hasQtyOnOrder bool
	err := q.QueryRow(ctx, `
SELECT EXISTS (
  SELECT 1 FROM information_schema.columns
  WHERE table_schema = current_schema()
    AND table_name = 'line_items'
    AND column_name = 'qty_on_order'
)`).Scan(&hasQtyOnOrder)
	if err != nil {
		return repositories.Capabilities{}, entities.WrapStore("probe capabilities", err)
	}
	return repositories.Capabilities{QtyOnOrder: hasQtyOnOrder}, nil
}

// Verify interface compliance
var (
	_ repositories.Store              = (*Store)(nil)
	_ repositories.OrderRepository    = (*Store)(nil)
	_ repositories.ToolRepository     = (*Store)(nil)
	_ repositories.LineItemRepository = (*Store)(nil)
	_ repositories.PickRepository     = (*Store)(nil)
	_ repositories.CatalogRepository  = (*Store)(nil)
)

func (s *Store) Orders() repositories.OrderRepository       { return s }
func (s *Store) Tools() repositories.ToolRepository         { return s }
func (s *Store) LineItems() repositories.LineItemRepository { return s }
func (s *Store) Picks() repositories.PickRepository         { return s }
func (s *Store) Catalog() repositories.CatalogRepository    { return s }
func (s *Store) Audit() events.EventStore                   { return &EventStore{q: s.q} }
func (s *Store) Capabilities() repositories.Capabilities    { return s.caps }

// RunInTx runs fn inside a database transaction. Nested calls join the
// outer transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx repositories.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	var fnErr error
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		fnErr = fn(ctx, &Store{
			pool:     s.pool,
			q:        tx,
			caps:     s.caps,
			pageSize: s.pageSize,
			logger:   s.logger,
			inTx:     true,
		})
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	return entities.WrapStore("transaction", err)
}
