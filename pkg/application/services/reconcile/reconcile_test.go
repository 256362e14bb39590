package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vsinha/picktrack/pkg/application/dto"
	"github.com/vsinha/picktrack/pkg/domain/entities"
	"github.com/vsinha/picktrack/pkg/infrastructure/events"
	"github.com/vsinha/picktrack/pkg/infrastructure/repositories/memory"
)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *memory.Store
	svc   *Service
	order *entities.Order
	tools map[string]string // tool number -> id
}

func newFixture(t *testing.T, so string, toolNumbers ...string) *fixture {
	t.Helper()
	store := memory.NewStore()
	f := &fixture{t: t, ctx: context.Background(), store: store, svc: NewService(store, zap.NewNop()), tools: map[string]string{}}
	f.addOrder(so, toolNumbers...)
	return f
}

func (f *fixture) addOrder(so string, toolNumbers ...string) *entities.Order {
	f.t.Helper()
	order, err := entities.NewOrder(so)
	require.NoError(f.t, err)
	require.NoError(f.t, f.store.CreateOrder(f.ctx, order))
	for _, n := range toolNumbers {
		tool, err := entities.NewTool(order.ID, n, "M1")
		require.NoError(f.t, err)
		require.NoError(f.t, f.store.CreateTool(f.ctx, tool))
		f.tools[so+"/"+n] = tool.ID
		if f.order == nil || f.order.ID == order.ID {
			f.tools[n] = tool.ID
		}
	}
	if f.order == nil {
		f.order = order
	}
	return order
}

func (f *fixture) ids(numbers ...string) []string {
	out := make([]string, len(numbers))
	for i, n := range numbers {
		out[i] = f.tools[n]
	}
	return out
}

func (f *fixture) item(orderID string, pn entities.PartNumber, qty, total entities.Quantity, toolIDs []string) *entities.LineItem {
	f.t.Helper()
	li, err := entities.NewLineItem(orderID, pn, qty, total, toolIDs)
	require.NoError(f.t, err)
	require.NoError(f.t, f.store.CreateLineItem(f.ctx, li))
	return li
}

func (f *fixture) pick(li *entities.LineItem, toolID string, qty entities.Quantity) *entities.Pick {
	f.t.Helper()
	p, err := entities.NewPick(li.ID, toolID, qty, "ann", time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), "")
	require.NoError(f.t, err)
	require.NoError(f.t, f.store.CreatePick(f.ctx, p))
	return p
}

func (f *fixture) items(orderID string) []*entities.LineItem {
	f.t.Helper()
	items, err := f.store.ListLineItems(f.ctx, orderID)
	require.NoError(f.t, err)
	return items
}

func (f *fixture) picksOf(items []*entities.LineItem) []*entities.Pick {
	f.t.Helper()
	ids := make([]string, len(items))
	for i, li := range items {
		ids[i] = li.ID
	}
	picks, err := f.store.ListPicksByLineItems(f.ctx, ids)
	require.NoError(f.t, err)
	return picks
}

func (f *fixture) trail(orderID string) []events.Event {
	f.t.Helper()
	evs, err := f.store.Audit().ReadEvents(f.ctx, events.OrderStream(orderID), 1)
	require.NoError(f.t, err)
	return evs
}

func countType(evs []events.Event, eventType string) int {
	n := 0
	for _, e := range evs {
		if e.Type() == eventType {
			n++
		}
	}
	return n
}

// pickedByTool sums picks per tool, the quantity every restructuring must conserve
func pickedByTool(picks []*entities.Pick) map[string]entities.Quantity {
	out := map[string]entities.Quantity{}
	for _, p := range picks {
		out[p.ToolID] += p.QtyPicked
	}
	return out
}

// tieredPart creates BOLT at 4 per tool on T1,T2 and 6 on T3, with one pick on each tier
func (f *fixture) tieredPart() (*entities.LineItem, *entities.LineItem) {
	low := f.item(f.order.ID, "BOLT", 4, 8, f.ids("T1", "T2"))
	high := f.item(f.order.ID, "BOLT", 6, 6, f.ids("T3"))
	f.pick(low, f.tools["T1"], 2)
	f.pick(high, f.tools["T3"], 3)
	return low, high
}

func TestMerge_RefusesPicksWithoutPermission(t *testing.T) {
	f := newFixture(t, "SO-1", "T1", "T2", "T3")
	f.tieredPart()

	plan, err := f.svc.PlanMerge(f.ctx, f.order.ID, MergeOptions{})
	require.NoError(t, err)
	assert.True(t, plan.Empty())
	report := plan.Report()
	require.Len(t, report.Unresolved, 1)
	assert.Equal(t, entities.PartNumber("BOLT"), report.Unresolved[0].PartNumber)
	assert.Contains(t, report.Unresolved[0].Reason, "pick migration not allowed")
}

func TestMerge_ConservesPicks(t *testing.T) {
	f := newFixture(t, "SO-1", "T1", "T2", "T3")
	low, high := f.tieredPart()
	before := pickedByTool(f.picksOf(f.items(f.order.ID)))

	plan, err := f.svc.PlanMerge(f.ctx, f.order.ID, MergeOptions{AllowPickMigration: true})
	require.NoError(t, err)
	require.False(t, plan.Empty())

	report, err := f.svc.ApplyMerge(f.ctx, plan)
	require.NoError(t, err)
	assert.True(t, report.Executed)
	require.Len(t, report.Entries, 1)
	entry := report.Entries[0]
	assert.Equal(t, []string{high.ID}, entry.DeletedLineItemIDs)
	assert.NotEmpty(t, entry.Notes, "differing tiers are flagged")

	items := f.items(f.order.ID)
	require.Len(t, items, 1)
	merged := items[0]
	assert.Equal(t, low.ID, merged.ID, "ties keep the first item")
	assert.Equal(t, entities.Quantity(4), merged.QtyPerUnit)
	assert.Equal(t, entities.Quantity(14), merged.TotalQtyNeeded)
	assert.True(t, merged.IsShared(), "union covering all tools becomes shared")

	picks := f.picksOf(items)
	assert.Len(t, picks, 2)
	assert.Equal(t, before, pickedByTool(picks))

	trail := f.trail(f.order.ID)
	assert.Equal(t, 1, countType(trail, events.PickReattributedEvent))
	assert.Equal(t, 1, countType(trail, events.LineItemUpdatedEvent))
	require.Equal(t, 1, countType(trail, events.LineItemDeletedEvent))
	for _, e := range trail {
		if e.Type() == events.LineItemDeletedEvent {
			tomb := e.Data().(events.LineItemDeleted)
			assert.Equal(t, high.ID, tomb.LineItem.ID)
			assert.Equal(t, entities.Quantity(6), tomb.LineItem.QtyPerUnit)
		}
	}
}

func TestMerge_KeepsItemWithMostPicks(t *testing.T) {
	f := newFixture(t, "SO-1", "T1", "T2", "T3")
	a := f.item(f.order.ID, "NUT", 1, 1, f.ids("T1"))
	b := f.item(f.order.ID, "NUT", 1, 1, f.ids("T2"))
	f.pick(b, f.tools["T2"], 1)
	f.pick(b, f.tools["T2"], 1)

	plan, err := f.svc.PlanMerge(f.ctx, f.order.ID, MergeOptions{AllowPickMigration: true})
	require.NoError(t, err)
	_, err = f.svc.ApplyMerge(f.ctx, plan)
	require.NoError(t, err)

	items := f.items(f.order.ID)
	require.Len(t, items, 1)
	assert.Equal(t, b.ID, items[0].ID)
	assert.Equal(t, f.ids("T1", "T2"), items[0].ToolIDs, "partial union stays tiered")
	assert.Equal(t, entities.Quantity(2), items[0].TotalQtyNeeded)
	_, err = f.store.GetLineItem(f.ctx, a.ID)
	assert.ErrorIs(t, err, entities.ErrNotFound)
}

func TestMerge_UnknownPartIsUnresolved(t *testing.T) {
	f := newFixture(t, "SO-1", "T1")
	plan, err := f.svc.PlanMerge(f.ctx, f.order.ID, MergeOptions{PartNumbers: []entities.PartNumber{"GHOST"}})
	require.NoError(t, err)
	assert.True(t, plan.Empty())
	require.Len(t, plan.Report().Unresolved, 1)
	assert.Equal(t, "no line item to merge into", plan.Report().Unresolved[0].Reason)
}

func TestDryRun_WritesNothing(t *testing.T) {
	f := newFixture(t, "SO-1", "T1", "T2", "T3")
	f.tieredPart()
	before := f.items(f.order.ID)

	merge, err := f.svc.PlanMerge(f.ctx, f.order.ID, MergeOptions{AllowPickMigration: true})
	require.NoError(t, err)
	report := merge.Report()
	assert.False(t, report.Executed)
	require.Len(t, report.Entries, 1)
	assert.Len(t, report.Entries[0].BeforeState, 2)
	assert.Len(t, report.Entries[0].AfterState, 1)

	_, err = f.svc.DetectExcessPicks(f.ctx, f.order.ID)
	require.NoError(t, err)
	_, err = f.svc.Audit(f.ctx, f.order.ID)
	require.NoError(t, err)

	assert.Equal(t, before, f.items(f.order.ID))
	assert.Empty(t, f.trail(f.order.ID))
}

func TestSplit_PicksFollowTheirTool(t *testing.T) {
	f := newFixture(t, "SO-1", "T1", "T2", "T3")
	shared := f.item(f.order.ID, "BOLT", 4, 12, nil)
	f.pick(shared, f.tools["T1"], 2)
	f.pick(shared, f.tools["T3"], 5)
	f.pick(shared, f.tools["T2"], 1)
	before := pickedByTool(f.picksOf(f.items(f.order.ID)))

	perTool := map[entities.PartNumber]map[string]entities.Quantity{
		"BOLT": {f.tools["T1"]: 4, f.tools["T2"]: 4, f.tools["T3"]: 6},
	}
	plan, err := f.svc.PlanSplit(f.ctx, f.order.ID, SplitOptions{PerTool: perTool})
	require.NoError(t, err)
	require.False(t, plan.Empty())
	preview := plan.Report()
	require.Len(t, preview.Entries, 1)
	assert.Len(t, preview.Entries[0].AfterState, 2)

	report, err := f.svc.ApplySplit(f.ctx, plan)
	require.NoError(t, err)
	require.Len(t, report.Entries, 1)
	assert.Len(t, report.Entries[0].CreatedLineItemIDs, 1)
	assert.Len(t, report.Entries[0].MigratedPickIDs, 2)

	items := f.items(f.order.ID)
	require.Len(t, items, 2)
	kept, err := f.store.GetLineItem(f.ctx, shared.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.Quantity(6), kept.QtyPerUnit, "highest tier keeps the existing item")
	assert.Equal(t, f.ids("T3"), kept.ToolIDs)
	assert.Equal(t, entities.Quantity(6), kept.TotalQtyNeeded)

	created, err := f.store.GetLineItem(f.ctx, report.Entries[0].CreatedLineItemIDs[0])
	require.NoError(t, err)
	assert.Equal(t, entities.Quantity(4), created.QtyPerUnit)
	assert.Equal(t, f.ids("T1", "T2"), created.ToolIDs)
	assert.Equal(t, entities.Quantity(8), created.TotalQtyNeeded)

	picks := f.picksOf(items)
	assert.Equal(t, before, pickedByTool(picks))
	byID := map[string]*entities.LineItem{kept.ID: kept, created.ID: created}
	for _, p := range picks {
		assert.True(t, byID[p.LineItemID].AppliesTo(p.ToolID), "pick %s on a tier covering tool %s", p.ID, p.ToolID)
	}

	excess, err := f.svc.DetectExcessPicks(f.ctx, f.order.ID)
	require.NoError(t, err)
	assert.Empty(t, excess)
}

func TestSplit_ThenMergeRoundTrip(t *testing.T) {
	f := newFixture(t, "SO-1", "T1", "T2")
	shared := f.item(f.order.ID, "PIN", 1, 3, nil)
	f.pick(shared, f.tools["T2"], 2)

	perTool := map[entities.PartNumber]map[string]entities.Quantity{"PIN": {f.tools["T1"]: 1, f.tools["T2"]: 2}}
	split, err := f.svc.PlanSplit(f.ctx, f.order.ID, SplitOptions{PerTool: perTool})
	require.NoError(t, err)
	_, err = f.svc.ApplySplit(f.ctx, split)
	require.NoError(t, err)
	require.Len(t, f.items(f.order.ID), 2)

	again, err := f.svc.PlanSplit(f.ctx, f.order.ID, SplitOptions{PerTool: perTool})
	require.NoError(t, err)
	assert.True(t, again.Empty())
	require.Len(t, again.Report().Unresolved, 1)
	assert.Contains(t, again.Report().Unresolved[0].Reason, "already split")

	merge, err := f.svc.PlanMerge(f.ctx, f.order.ID, MergeOptions{AllowPickMigration: true})
	require.NoError(t, err)
	_, err = f.svc.ApplyMerge(f.ctx, merge)
	require.NoError(t, err)

	items := f.items(f.order.ID)
	require.Len(t, items, 1)
	assert.Equal(t, entities.Quantity(3), items[0].TotalQtyNeeded)
	assert.Equal(t, entities.Quantity(2), entities.SumPicked(f.picksOf(items)))
}

func TestSplit_PickWithoutTierIsUnresolved(t *testing.T) {
	f := newFixture(t, "SO-1", "T1", "T2")
	shared := f.item(f.order.ID, "PIN", 1, 2, nil)
	f.pick(shared, f.tools["T2"], 1)

	perTool := map[entities.PartNumber]map[string]entities.Quantity{"PIN": {f.tools["T1"]: 1, f.tools["T2"]: 0}}
	plan, err := f.svc.PlanSplit(f.ctx, f.order.ID, SplitOptions{PerTool: perTool})
	require.NoError(t, err)
	assert.True(t, plan.Empty())
	require.Len(t, plan.Report().Unresolved, 1)
	assert.Contains(t, plan.Report().Unresolved[0].Reason, "matches no quantity tier")
}

func TestApply_StalePlanIsSkipped(t *testing.T) {
	f := newFixture(t, "SO-1", "T1", "T2", "T3")
	_, high := f.tieredPart()

	plan, err := f.svc.PlanMerge(f.ctx, f.order.ID, MergeOptions{AllowPickMigration: true})
	require.NoError(t, err)

	// a pick lands after planning
	f.pick(high, f.tools["T3"], 1)

	report, err := f.svc.ApplyMerge(f.ctx, plan)
	require.NoError(t, err)
	assert.Empty(t, report.Entries)
	require.Len(t, report.Unresolved, 1)
	assert.Contains(t, report.Unresolved[0].Reason, "plan is stale")
	assert.Len(t, f.items(f.order.ID), 2)
	assert.Empty(t, f.trail(f.order.ID))
}

func TestExcess_DetectsOnlyUncoveredTools(t *testing.T) {
	f := newFixture(t, "SO-1", "T1", "T2", "T3")
	tiered := f.item(f.order.ID, "BOLT", 4, 8, f.ids("T1", "T2"))
	sibling := f.item(f.order.ID, "BOLT", 6, 6, f.ids("T3"))
	shared := f.item(f.order.ID, "NUT", 1, 3, nil)

	f.pick(tiered, f.tools["T1"], 4)
	stray := f.pick(tiered, f.tools["T3"], 2)
	f.pick(shared, f.tools["T3"], 1)

	excess, err := f.svc.DetectExcessPicks(f.ctx, f.order.ID)
	require.NoError(t, err)
	require.Len(t, excess, 1)
	ex := excess[0]
	assert.Equal(t, stray.ID, ex.PickID)
	assert.Equal(t, "T3", ex.ToolNumber)
	assert.Equal(t, f.ids("T1", "T2"), ex.LineItemToolIDs)
	assert.Equal(t, sibling.ID, ex.ReattributeTo)
}

func TestExcess_RepairRequiresConfirmation(t *testing.T) {
	f := newFixture(t, "SO-1", "T1", "T2")
	tiered := f.item(f.order.ID, "BOLT", 4, 4, f.ids("T1"))
	stray := f.pick(tiered, f.tools["T2"], 2)

	plan, err := f.svc.PlanExcessRepair(f.ctx, f.order.ID, ExcessOptions{})
	require.NoError(t, err)
	require.Len(t, plan.Excess(), 1)

	_, err = f.svc.ApplyExcessRepair(f.ctx, plan, false)
	assert.ErrorIs(t, err, entities.ErrConfirmationRequired)
	_, err = f.store.GetPick(f.ctx, stray.ID)
	require.NoError(t, err, "unconfirmed repair deletes nothing")

	report, err := f.svc.ApplyExcessRepair(f.ctx, plan, true)
	require.NoError(t, err)
	require.Len(t, report.Entries, 1)
	assert.Equal(t, []string{stray.ID}, report.Entries[0].DeletedPickIDs)

	_, err = f.store.GetPick(f.ctx, stray.ID)
	assert.ErrorIs(t, err, entities.ErrNotFound)

	trail := f.trail(f.order.ID)
	require.Len(t, trail, 1)
	tomb := trail[0].Data().(events.PickDeleted)
	assert.Equal(t, stray.ID, tomb.Pick.ID)
	assert.Equal(t, entities.Quantity(2), tomb.Pick.QtyPicked)
	assert.Equal(t, "ann", tomb.Pick.PickedBy)
}

func TestExcess_Reattribute(t *testing.T) {
	f := newFixture(t, "SO-1", "T1", "T2")
	a := f.item(f.order.ID, "BOLT", 4, 4, f.ids("T1"))
	b := f.item(f.order.ID, "BOLT", 2, 2, f.ids("T2"))
	stray := f.pick(a, f.tools["T2"], 2)

	plan, err := f.svc.PlanExcessRepair(f.ctx, f.order.ID, ExcessOptions{Reattribute: true})
	require.NoError(t, err)
	report, err := f.svc.ApplyExcessRepair(f.ctx, plan, true)
	require.NoError(t, err)
	require.Len(t, report.Entries, 1)
	assert.Equal(t, []string{stray.ID}, report.Entries[0].MigratedPickIDs)

	moved, err := f.store.GetPick(f.ctx, stray.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, moved.LineItemID)
	assert.Equal(t, 1, countType(f.trail(f.order.ID), events.PickReattributedEvent))
}

func TestExcess_ReattributeTargetChangedIsSkipped(t *testing.T) {
	tests := []struct {
		name   string
		change func(f *fixture, target *entities.LineItem)
		reason string
	}{
		{
			name: "target deleted",
			change: func(f *fixture, target *entities.LineItem) {
				require.NoError(f.t, f.store.DeleteLineItem(f.ctx, target.ID))
			},
			reason: "no longer exists",
		},
		{
			name: "target rescoped",
			change: func(f *fixture, target *entities.LineItem) {
				patch := entities.LineItemPatch{ToolIDs: &entities.ToolIDsValue{Value: f.ids("T3")}}
				require.NoError(f.t, f.store.UpdateLineItem(f.ctx, target.ID, patch))
			},
			reason: "no longer covers tool T2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "SO-1", "T1", "T2", "T3")
			a := f.item(f.order.ID, "BOLT", 4, 4, f.ids("T1"))
			b := f.item(f.order.ID, "BOLT", 2, 2, f.ids("T2"))
			stray := f.pick(a, f.tools["T2"], 2)

			plan, err := f.svc.PlanExcessRepair(f.ctx, f.order.ID, ExcessOptions{Reattribute: true})
			require.NoError(t, err)
			tt.change(f, b)

			report, err := f.svc.ApplyExcessRepair(f.ctx, plan, true)
			require.NoError(t, err)
			assert.Empty(t, report.Entries)
			require.Len(t, report.Unresolved, 1)
			assert.Contains(t, report.Unresolved[0].Reason, "plan is stale")
			assert.Contains(t, report.Unresolved[0].Reason, tt.reason)

			kept, err := f.store.GetPick(f.ctx, stray.ID)
			require.NoError(t, err)
			assert.Equal(t, a.ID, kept.LineItemID)
			assert.Empty(t, f.trail(f.order.ID))
		})
	}
}

func TestExcess_FilterByPick(t *testing.T) {
	f := newFixture(t, "SO-1", "T1", "T2")
	a := f.item(f.order.ID, "BOLT", 1, 1, f.ids("T1"))
	first := f.pick(a, f.tools["T2"], 1)
	second := f.pick(a, f.tools["T2"], 1)

	plan, err := f.svc.PlanExcessRepair(f.ctx, f.order.ID, ExcessOptions{PickIDs: []string{second.ID}})
	require.NoError(t, err)
	_, err = f.svc.ApplyExcessRepair(f.ctx, plan, true)
	require.NoError(t, err)

	_, err = f.store.GetPick(f.ctx, first.ID)
	assert.NoError(t, err)
	_, err = f.store.GetPick(f.ctx, second.ID)
	assert.ErrorIs(t, err, entities.ErrNotFound)
}

func TestRunBatch_IsolatesFailingOrders(t *testing.T) {
	f := newFixture(t, "SO-1", "T1", "T2")
	other := f.addOrder("SO-2", "T1", "T2")
	for _, o := range []*entities.Order{f.order, other} {
		f.item(o.ID, "BOLT", 1, 1, []string{f.tools[o.SONumber+"/T1"]})
		f.item(o.ID, "BOLT", 1, 1, []string{f.tools[o.SONumber+"/T2"]})
	}

	// the first commit succeeds, every later one fails
	f.store.InjectFaultAfter("Commit", 1, errors.New("connection reset"))

	result := f.svc.RunBatch(f.ctx, []string{f.order.ID, other.ID}, func(ctx context.Context, orderID string) (*dto.ReconcileReport, error) {
		plan, err := f.svc.PlanMerge(ctx, orderID, MergeOptions{})
		if err != nil {
			return nil, err
		}
		return f.svc.ApplyMerge(ctx, plan)
	})

	require.Len(t, result.Reports, 1)
	assert.Equal(t, f.order.ID, result.Reports[0].OrderID)
	require.Contains(t, result.Failed, other.ID)
	assert.Contains(t, result.Failed[other.ID], "connection reset")

	assert.Len(t, f.items(f.order.ID), 1)
	assert.Len(t, f.items(other.ID), 2, "failed order is rolled back")
	assert.Empty(t, f.trail(other.ID))
}

func TestAudit_ReportsEveryKind(t *testing.T) {
	f := newFixture(t, "SO-1", "T1", "T2")
	t1, t2 := f.tools["T1"], f.tools["T2"]

	f.item(f.order.ID, "OK", 2, 4, nil)
	f.item(f.order.ID, "MISMATCH", 2, 5, []string{t1})
	f.item(f.order.ID, "DUP", 1, 2, nil)
	f.item(f.order.ID, "DUP", 1, 2, nil)
	f.item(f.order.ID, "GHOST", 1, 1, []string{"not-a-tool"})
	f.item(f.order.ID, "OVER", 1, 2, []string{t1, t2})
	f.item(f.order.ID, "OVER", 2, 2, []string{t2})
	excess := f.item(f.order.ID, "EXCESS", 1, 1, []string{t1})
	f.pick(excess, t2, 1)

	report, err := f.svc.Audit(f.ctx, f.order.ID)
	require.NoError(t, err)

	kinds := map[entities.ViolationKind][]entities.PartNumber{}
	for _, v := range report.Violations {
		kinds[v.Kind] = append(kinds[v.Kind], v.PartNumber)
	}
	assert.Equal(t, []entities.PartNumber{"MISMATCH"}, kinds[entities.ViolationTotalMismatch])
	assert.Equal(t, []entities.PartNumber{"DUP"}, kinds[entities.ViolationDuplicateShared])
	assert.Equal(t, []entities.PartNumber{"GHOST"}, kinds[entities.ViolationForeignTool])
	assert.Equal(t, []entities.PartNumber{"OVER"}, kinds[entities.ViolationOverlappingTiers])
	assert.Equal(t, []entities.PartNumber{"EXCESS"}, kinds[entities.ViolationExcessPick])
	assert.NotContains(t, kinds[entities.ViolationTotalMismatch], entities.PartNumber("OK"))
}
