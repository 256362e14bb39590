package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/vsinha/picktrack/pkg/domain/entities"
	"github.com/vsinha/picktrack/pkg/domain/repositories"
	"github.com/vsinha/picktrack/pkg/infrastructure/events"
)

// state is everything a transaction snapshots and swaps back in on commit
type state struct {
	orders      map[string]*entities.Order
	orderSeq    []string
	tools       map[string]*entities.Tool
	toolSeq     []string
	lineItems   map[string]*entities.LineItem
	lineItemSeq []string
	picks       map[string]*entities.Pick
	pickSeq     []string
	catalog     *CatalogRepository
}

func newState() *state {
	return &state{
		orders:    make(map[string]*entities.Order),
		tools:     make(map[string]*entities.Tool),
		lineItems: make(map[string]*entities.LineItem),
		picks:     make(map[string]*entities.Pick),
		catalog:   NewCatalogRepository(0),
	}
}

func (s *state) clone() *state {
	c := &state{
		orders:      make(map[string]*entities.Order, len(s.orders)),
		orderSeq:    slices.Clone(s.orderSeq),
		tools:       make(map[string]*entities.Tool, len(s.tools)),
		toolSeq:     slices.Clone(s.toolSeq),
		lineItems:   make(map[string]*entities.LineItem, len(s.lineItems)),
		lineItemSeq: slices.Clone(s.lineItemSeq),
		picks:       make(map[string]*entities.Pick, len(s.picks)),
		pickSeq:     slices.Clone(s.pickSeq),
		catalog:     s.catalog.clone(),
	}
	for id, o := range s.orders {
		oc := *o
		c.orders[id] = &oc
	}
	for id, t := range s.tools {
		tc := *t
		c.tools[id] = &tc
	}
	for id, li := range s.lineItems {
		c.lineItems[id] = li.Clone()
	}
	for id, p := range s.picks {
		pc := *p
		c.picks[id] = &pc
	}
	return c
}

// Store is an in-memory repositories.Store. Reads return copies, so callers
// never alias stored records.
type Store struct {
	mu       *sync.RWMutex
	txMu     *sync.Mutex
	st       *state
	audit    events.EventStore
	caps     repositories.Capabilities
	pageSize int
	faults   *faults
	inTx     bool
}

// Option configures a Store
type Option func(*Store)

// WithPageSize sets the page size used when listing
func WithPageSize(n int) Option {
	return func(s *Store) { s.pageSize = n }
}

// WithCapabilities overrides the default capabilities (all features present)
func WithCapabilities(c repositories.Capabilities) Option {
	return func(s *Store) { s.caps = c }
}

// WithEventStore sets the audit trail backend
func WithEventStore(es events.EventStore) Option {
	return func(s *Store) { s.audit = es }
}

// NewStore creates an empty in-memory store
func NewStore(opts ...Option) *Store {
	s := &Store{
		mu:       &sync.RWMutex{},
		txMu:     &sync.Mutex{},
		st:       newState(),
		audit:    events.NewInMemoryEventStore(),
		caps:     repositories.Capabilities{QtyOnOrder: true},
		pageSize: repositories.DefaultPageSize,
		faults:   newFaults(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
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
func (s *Store) Audit() events.EventStore                   { return s.audit }
func (s *Store) Capabilities() repositories.Capabilities    { return s.caps }

// RunInTx runs fn against a snapshot of the store. When fn succeeds the
// buffered audit events are flushed first, then the snapshot replaces the
// live state. Transactions are serialized.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx repositories.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.st.clone()
	s.mu.RUnlock()

	buffered := events.NewBufferedEventStore(s.audit)
	tx := &Store{
		mu:       &sync.RWMutex{},
		txMu:     s.txMu,
		st:       snapshot,
		audit:    buffered,
		caps:     s.caps,
		pageSize: s.pageSize,
		faults:   s.faults,
		inTx:     true,
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := s.faults.check("Commit"); err != nil {
		return entities.WrapStore("commit", err)
	}

	// audit events land before the state they describe; a failed flush
	// leaves the live state untouched
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := buffered.Flush(ctx); err != nil {
		return entities.WrapStore("commit audit events", err)
	}
	s.st = snapshot
	return nil
}

// CreateOrder assigns an ID and stores the order
func (s *Store) CreateOrder(ctx context.Context, order *entities.Order) error {
	if err := s.faults.check("CreateOrder"); err != nil {
		return entities.WrapStore("create order", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.st.orders {
		if o.SONumber == order.SONumber {
			return entities.WrapStore("create order", fmt.Errorf("so number %s already exists", order.SONumber))
		}
	}
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	stored := *order
	s.st.orders[order.ID] = &stored
	s.st.orderSeq = append(s.st.orderSeq, order.ID)
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*entities.Order, error) {
	if err := s.faults.check("GetOrder"); err != nil {
		return nil, entities.WrapStore("get order", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.st.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, entities.ErrNotFound)
	}
	c := *o
	return &c, nil
}

func (s *Store) FindOrderBySONumber(ctx context.Context, soNumber string) (*entities.Order, error) {
	if err := s.faults.check("FindOrderBySONumber"); err != nil {
		return nil, entities.WrapStore("find order", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.st.orderSeq {
		if o := s.st.orders[id]; o.SONumber == soNumber {
			c := *o
			return &c, nil
		}
	}
	return nil, fmt.Errorf("order with so number %s: %w", soNumber, entities.ErrNotFound)
}

func (s *Store) ListOrders(ctx context.Context) ([]*entities.Order, error) {
	return repositories.FetchAll(ctx, s.pageSize, func(ctx context.Context, offset, limit int) ([]*entities.Order, error) {
		if err := s.faults.check("ListOrders"); err != nil {
			return nil, entities.WrapStore("list orders", err)
		}
		s.mu.RLock()
		defer s.mu.RUnlock()

		var page []*entities.Order
		for _, id := range window(s.st.orderSeq, offset, limit) {
			c := *s.st.orders[id]
			page = append(page, &c)
		}
		return page, nil
	})
}

// CreateTool assigns an ID and stores the tool
func (s *Store) CreateTool(ctx context.Context, tool *entities.Tool) error {
	if err := s.faults.check("CreateTool"); err != nil {
		return entities.WrapStore("create tool", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.st.orders[tool.OrderID]; !ok {
		return entities.WrapStore("create tool", fmt.Errorf("order %s: %w", tool.OrderID, entities.ErrNotFound))
	}
	if tool.ID == "" {
		tool.ID = uuid.NewString()
	}
	stored := *tool
	s.st.tools[tool.ID] = &stored
	s.st.toolSeq = append(s.st.toolSeq, tool.ID)
	return nil
}

func (s *Store) ListTools(ctx context.Context, orderID string) ([]*entities.Tool, error) {
	if err := s.faults.check("ListTools"); err != nil {
		return nil, entities.WrapStore("list tools", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tools []*entities.Tool
	for _, id := range s.st.toolSeq {
		if t := s.st.tools[id]; t.OrderID == orderID {
			c := *t
			tools = append(tools, &c)
		}
	}
	return tools, nil
}

// CreateLineItem assigns an ID and stores the line item. Without the
// qty_on_order capability the field is not persisted.
func (s *Store) CreateLineItem(ctx context.Context, item *entities.LineItem) error {
	if err := s.faults.check("CreateLineItem"); err != nil {
		return entities.WrapStore("create line item", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.st.orders[item.OrderID]; !ok {
		return entities.WrapStore("create line item", fmt.Errorf("order %s: %w", item.OrderID, entities.ErrNotFound))
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	stored := item.Clone()
	if !s.caps.QtyOnOrder {
		stored.QtyOnOrder = 0
	}
	s.st.lineItems[item.ID] = stored
	s.st.lineItemSeq = append(s.st.lineItemSeq, item.ID)
	return nil
}

func (s *Store) GetLineItem(ctx context.Context, id string) (*entities.LineItem, error) {
	if err := s.faults.check("GetLineItem"); err != nil {
		return nil, entities.WrapStore("get line item", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	li, ok := s.st.lineItems[id]
	if !ok {
		return nil, fmt.Errorf("line item %s: %w", id, entities.ErrNotFound)
	}
	return li.Clone(), nil
}

// ListLineItems returns an order's line items in insertion order, one page at a time
func (s *Store) ListLineItems(ctx context.Context, orderID string) ([]*entities.LineItem, error) {
	return repositories.FetchAll(ctx, s.pageSize, func(ctx context.Context, offset, limit int) ([]*entities.LineItem, error) {
		if err := s.faults.check("ListLineItems"); err != nil {
			return nil, entities.WrapStore("list line items", err)
		}
		s.mu.RLock()
		defer s.mu.RUnlock()

		var ids []string
		for _, id := range s.st.lineItemSeq {
			if s.st.lineItems[id].OrderID == orderID {
				ids = append(ids, id)
			}
		}
		var page []*entities.LineItem
		for _, id := range window(ids, offset, limit) {
			page = append(page, s.st.lineItems[id].Clone())
		}
		return page, nil
	})
}

func (s *Store) UpdateLineItem(ctx context.Context, id string, patch entities.LineItemPatch) error {
	if err := s.faults.check("UpdateLineItem"); err != nil {
		return entities.WrapStore("update line item", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	li, ok := s.st.lineItems[id]
	if !ok {
		return fmt.Errorf("line item %s: %w", id, entities.ErrNotFound)
	}
	if !s.caps.QtyOnOrder {
		patch.QtyOnOrder = nil
	}
	patch.Apply(li)
	return nil
}

// DeleteLineItem removes a line item. Picks must be moved or deleted first.
func (s *Store) DeleteLineItem(ctx context.Context, id string) error {
	if err := s.faults.check("DeleteLineItem"); err != nil {
		return entities.WrapStore("delete line item", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.st.lineItems[id]; !ok {
		return fmt.Errorf("line item %s: %w", id, entities.ErrNotFound)
	}
	for _, p := range s.st.picks {
		if p.LineItemID == id {
			return entities.WrapStore("delete line item", fmt.Errorf("line item %s still has picks", id))
		}
	}
	delete(s.st.lineItems, id)
	s.st.lineItemSeq = remove(s.st.lineItemSeq, id)
	return nil
}

// CreatePick assigns an ID and appends the pick to the ledger
func (s *Store) CreatePick(ctx context.Context, pick *entities.Pick) error {
	if err := s.faults.check("CreatePick"); err != nil {
		return entities.WrapStore("create pick", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.st.lineItems[pick.LineItemID]; !ok {
		return entities.WrapStore("create pick", fmt.Errorf("line item %s: %w", pick.LineItemID, entities.ErrNotFound))
	}
	if pick.ID == "" {
		pick.ID = uuid.NewString()
	}
	stored := *pick
	s.st.picks[pick.ID] = &stored
	s.st.pickSeq = append(s.st.pickSeq, pick.ID)
	return nil
}

func (s *Store) GetPick(ctx context.Context, id string) (*entities.Pick, error) {
	if err := s.faults.check("GetPick"); err != nil {
		return nil, entities.WrapStore("get pick", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.st.picks[id]
	if !ok {
		return nil, fmt.Errorf("pick %s: %w", id, entities.ErrNotFound)
	}
	c := *p
	return &c, nil
}

// ListPicksByLineItems returns the picks of the given line items in ledger order
func (s *Store) ListPicksByLineItems(ctx context.Context, lineItemIDs []string) ([]*entities.Pick, error) {
	wanted := make(map[string]bool, len(lineItemIDs))
	for _, id := range lineItemIDs {
		wanted[id] = true
	}

	return repositories.FetchAll(ctx, s.pageSize, func(ctx context.Context, offset, limit int) ([]*entities.Pick, error) {
		if err := s.faults.check("ListPicksByLineItems"); err != nil {
			return nil, entities.WrapStore("list picks", err)
		}
		s.mu.RLock()
		defer s.mu.RUnlock()

		var ids []string
		for _, id := range s.st.pickSeq {
			if wanted[s.st.picks[id].LineItemID] {
				ids = append(ids, id)
			}
		}
		var page []*entities.Pick
		for _, id := range window(ids, offset, limit) {
			c := *s.st.picks[id]
			page = append(page, &c)
		}
		return page, nil
	})
}

func (s *Store) ReassignPick(ctx context.Context, pickID, lineItemID string) error {
	if err := s.faults.check("ReassignPick"); err != nil {
		return entities.WrapStore("reassign pick", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.st.picks[pickID]
	if !ok {
		return fmt.Errorf("pick %s: %w", pickID, entities.ErrNotFound)
	}
	if _, ok := s.st.lineItems[lineItemID]; !ok {
		return fmt.Errorf("line item %s: %w", lineItemID, entities.ErrNotFound)
	}
	p.LineItemID = lineItemID
	return nil
}

func (s *Store) DeletePick(ctx context.Context, id string) error {
	if err := s.faults.check("DeletePick"); err != nil {
		return entities.WrapStore("delete pick", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.st.picks[id]; !ok {
		return fmt.Errorf("pick %s: %w", id, entities.ErrNotFound)
	}
	delete(s.st.picks, id)
	s.st.pickSeq = remove(s.st.pickSeq, id)
	return nil
}

func (s *Store) LookupParts(ctx context.Context, partNumbers []entities.PartNumber) (map[entities.PartNumber]*entities.CatalogEntry, error) {
	if err := s.faults.check("LookupParts"); err != nil {
		return nil, entities.WrapStore("lookup parts", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.catalog.LookupParts(ctx, partNumbers)
}

func (s *Store) UpsertParts(ctx context.Context, entries []*entities.CatalogEntry) error {
	if err := s.faults.check("UpsertParts"); err != nil {
		return entities.WrapStore("upsert parts", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.catalog.UpsertParts(ctx, entries)
}

// InjectFault makes every later call of op fail with err until cleared with
// a nil err. Ops are named after the store methods, plus "Commit".
func (s *Store) InjectFault(op string, err error) {
	s.faults.set(op, err)
}

// InjectFaultAfter lets op succeed n more times before it starts failing
func (s *Store) InjectFaultAfter(op string, n int, err error) {
	s.faults.setAfter(op, n, err)
}

func window(ids []string, offset, limit int) []string {
	if offset >= len(ids) {
		return nil
	}
	return ids[offset:min(offset+limit, len(ids))]
}

func remove(ids []string, id string) []string {
	if i := slices.Index(ids, id); i >= 0 {
		return slices.Delete(ids, i, i+1)
	}
	return ids
}
