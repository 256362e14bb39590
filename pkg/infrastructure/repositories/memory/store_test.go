package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/picktrack/pkg/domain/entities"
	"github.com/vsinha/picktrack/pkg/domain/repositories"
	"github.com/vsinha/picktrack/pkg/infrastructure/events"
)

func seedOrder(t *testing.T, s *Store) *entities.Order {
	t.Helper()
	order, err := entities.NewOrder("SO-1")
	require.NoError(t, err)
	require.NoError(t, s.CreateOrder(context.Background(), order))
	return order
}

func TestStore_LineItemLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	order := seedOrder(t, s)

	item, err := entities.NewLineItem(order.ID, "BOLT", 2, 4, []string{"t1", "t2"})
	require.NoError(t, err)
	require.NoError(t, s.CreateLineItem(ctx, item))
	require.NotEmpty(t, item.ID)

	// mutate the caller's copy; the store must not see it
	item.ToolIDs[0] = "changed"
	stored, err := s.GetLineItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, stored.ToolIDs)

	loc := "A-01"
	require.NoError(t, s.UpdateLineItem(ctx, item.ID, entities.LineItemPatch{
		TotalQtyNeeded: entities.Quantity(6).Ptr(),
		ToolIDs:        &entities.ToolIDsValue{Value: nil},
		Location:       &loc,
	}))
	stored, err = s.GetLineItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.Quantity(6), stored.TotalQtyNeeded)
	assert.Equal(t, entities.Quantity(2), stored.QtyPerUnit, "absent patch fields are untouched")
	assert.True(t, stored.IsShared())
	assert.Equal(t, "A-01", stored.Location)

	require.NoError(t, s.DeleteLineItem(ctx, item.ID))
	_, err = s.GetLineItem(ctx, item.ID)
	assert.ErrorIs(t, err, entities.ErrNotFound)
}

func TestStore_DeleteLineItemWithPicksFails(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	order := seedOrder(t, s)

	item, _ := entities.NewLineItem(order.ID, "BOLT", 1, 1, nil)
	require.NoError(t, s.CreateLineItem(ctx, item))
	pick, _ := entities.NewPick(item.ID, "t1", 1, "ann", order.CreatedAt, "")
	require.NoError(t, s.CreatePick(ctx, pick))

	err := s.DeleteLineItem(ctx, item.ID)
	var se *entities.StoreError
	assert.ErrorAs(t, err, &se)
}

func TestStore_PaginatesLargeLists(t *testing.T) {
	ctx := context.Background()
	s := NewStore(WithPageSize(3))
	order := seedOrder(t, s)

	var ids []string
	for i := 0; i < 10; i++ {
		item, _ := entities.NewLineItem(order.ID, entities.PartNumber("P"), 1, 1, nil)
		require.NoError(t, s.CreateLineItem(ctx, item))
		ids = append(ids, item.ID)

		pick, _ := entities.NewPick(item.ID, "t1", 1, "ann", order.CreatedAt, "")
		require.NoError(t, s.CreatePick(ctx, pick))
	}

	items, err := s.ListLineItems(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, items, 10)
	for i, it := range items {
		assert.Equal(t, ids[i], it.ID, "insertion order preserved across pages")
	}

	picks, err := s.ListPicksByLineItems(ctx, ids)
	require.NoError(t, err)
	assert.Len(t, picks, 10)
}

func TestStore_ReassignPick(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	order := seedOrder(t, s)

	a, _ := entities.NewLineItem(order.ID, "P", 1, 1, []string{"t1"})
	b, _ := entities.NewLineItem(order.ID, "P", 2, 2, []string{"t2"})
	require.NoError(t, s.CreateLineItem(ctx, a))
	require.NoError(t, s.CreateLineItem(ctx, b))
	pick, _ := entities.NewPick(a.ID, "t2", 2, "ann", order.CreatedAt, "")
	require.NoError(t, s.CreatePick(ctx, pick))

	require.NoError(t, s.ReassignPick(ctx, pick.ID, b.ID))
	got, err := s.GetPick(ctx, pick.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.LineItemID)
	assert.Equal(t, entities.Quantity(2), got.QtyPicked)

	assert.ErrorIs(t, s.ReassignPick(ctx, pick.ID, "missing"), entities.ErrNotFound)
}

func TestStore_RunInTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	order := seedOrder(t, s)

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		item, _ := entities.NewLineItem(order.ID, "P", 1, 1, nil)
		if err := tx.LineItems().CreateLineItem(ctx, item); err != nil {
			return err
		}
		stream := events.OrderStream(order.ID)
		if err := tx.Audit().AppendEvent(ctx, stream, events.NewEvent(events.LineItemCreatedEvent, stream, item)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	items, err := s.ListLineItems(ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	trail, err := s.Audit().ReadEvents(ctx, events.OrderStream(order.ID), 1)
	require.NoError(t, err)
	assert.Empty(t, trail, "audit events of a rolled back transaction are discarded")
}

func TestStore_RunInTx_Commits(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	order := seedOrder(t, s)

	err := s.RunInTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		item, _ := entities.NewLineItem(order.ID, "P", 1, 1, nil)
		if err := tx.LineItems().CreateLineItem(ctx, item); err != nil {
			return err
		}
		// not visible outside until commit
		outside, err := s.ListLineItems(ctx, order.ID)
		if err != nil {
			return err
		}
		assert.Empty(t, outside)

		stream := events.OrderStream(order.ID)
		return tx.Audit().AppendEvent(ctx, stream, events.NewEvent(events.LineItemCreatedEvent, stream, item))
	})
	require.NoError(t, err)

	items, err := s.ListLineItems(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	trail, err := s.Audit().ReadEvents(ctx, events.OrderStream(order.ID), 1)
	require.NoError(t, err)
	assert.Len(t, trail, 1)
}

// rejectingAudit accepts reads but refuses every append
type rejectingAudit struct {
	events.EventStore
	err error
}

func (r rejectingAudit) AppendEvent(ctx context.Context, streamID string, event events.Event) error {
	return r.err
}

func TestStore_RunInTx_AuditFlushFailureCommitsNothing(t *testing.T) {
	ctx := context.Background()
	rejected := errors.New("audit unavailable")
	s := NewStore(WithEventStore(rejectingAudit{EventStore: events.NewInMemoryEventStore(), err: rejected}))
	order := seedOrder(t, s)

	err := s.RunInTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		item, _ := entities.NewLineItem(order.ID, "P", 1, 1, nil)
		if err := tx.LineItems().CreateLineItem(ctx, item); err != nil {
			return err
		}
		stream := events.OrderStream(order.ID)
		return tx.Audit().AppendEvent(ctx, stream, events.NewEvent(events.LineItemCreatedEvent, stream, item))
	})
	require.ErrorIs(t, err, rejected)
	var se *entities.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "commit audit events", se.Op)

	items, err := s.ListLineItems(ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, items, "state stays unchanged when its audit events cannot be written")
}

func TestStore_InjectFault(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	order := seedOrder(t, s)

	s.InjectFaultAfter("CreateLineItem", 1, errors.New("disk full"))

	first, _ := entities.NewLineItem(order.ID, "A", 1, 1, nil)
	require.NoError(t, s.CreateLineItem(ctx, first))

	second, _ := entities.NewLineItem(order.ID, "B", 1, 1, nil)
	err := s.CreateLineItem(ctx, second)
	var se *entities.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "create line item", se.Op)

	s.InjectFault("CreateLineItem", nil)
	assert.NoError(t, s.CreateLineItem(ctx, second))
}

func TestStore_WithoutQtyOnOrderCapability(t *testing.T) {
	ctx := context.Background()
	s := NewStore(WithCapabilities(repositories.Capabilities{QtyOnOrder: false}))
	order := seedOrder(t, s)

	item, _ := entities.NewLineItem(order.ID, "P", 1, 1, nil)
	item.QtyOnOrder = 5
	require.NoError(t, s.CreateLineItem(ctx, item))
	require.NoError(t, s.UpdateLineItem(ctx, item.ID, entities.LineItemPatch{QtyOnOrder: entities.Quantity(9).Ptr()}))

	stored, err := s.GetLineItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.QtyOnOrder)
}

func TestStore_OrdersAndTools(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	order := seedOrder(t, s)

	dup, _ := entities.NewOrder("SO-1")
	assert.Error(t, s.CreateOrder(ctx, dup))

	found, err := s.FindOrderBySONumber(ctx, "SO-1")
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)

	_, err = s.FindOrderBySONumber(ctx, "SO-404")
	assert.ErrorIs(t, err, entities.ErrNotFound)

	for _, n := range []string{"T-1", "T-2"} {
		tool, _ := entities.NewTool(order.ID, n, "X200")
		require.NoError(t, s.CreateTool(ctx, tool))
	}
	tools, err := s.ListTools(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "T-1", tools[0].ToolNumber)

	orders, err := s.ListOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestCatalogRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewCatalogRepository(2)

	require.NoError(t, repo.UpsertParts(ctx, []*entities.CatalogEntry{
		{PartNumber: "BOLT", Description: "Bolt", Location: "A-01"},
		{PartNumber: "NUT", Description: "Nut"},
	}))
	require.NoError(t, repo.UpsertParts(ctx, []*entities.CatalogEntry{
		{PartNumber: "BOLT", Description: "Bolt M6", Location: "A-02"},
	}))

	found, err := repo.LookupParts(ctx, []entities.PartNumber{"BOLT", "MISSING"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Bolt M6", found["BOLT"].Description)
	assert.Equal(t, "A-02", found["BOLT"].Location)
}
