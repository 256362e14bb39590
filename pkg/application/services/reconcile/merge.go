package reconcile

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/vsinha/picktrack/pkg/application/dto"
	"github.com/vsinha/picktrack/pkg/domain/entities"
	"github.com/vsinha/picktrack/pkg/domain/repositories"
	"github.com/vsinha/picktrack/pkg/infrastructure/metrics"
)

// MergeOptions selects what PlanMerge collapses
type MergeOptions struct {
	// PartNumbers limits the merge; empty means every part with several line items
	PartNumbers []entities.PartNumber
	// AllowPickMigration permits merging items that already have picks
	AllowPickMigration bool
}

type mergeStep struct {
	partNumber entities.PartNumber
	before     []*entities.LineItem
	keep       *entities.LineItem
	remove     []*entities.LineItem
	patch      entities.LineItemPatch
	after      *entities.LineItem
	migrate    []*entities.Pick
	notes      []string
}

// MergePlan collapses each selected part's line items into one
type MergePlan struct {
	OrderID    string
	SONumber   string
	steps      []mergeStep
	unresolved []dto.Unresolved
}

// Empty reports whether applying the plan would change nothing
func (p *MergePlan) Empty() bool { return len(p.steps) == 0 }

// Report renders the plan as a dry-run report
func (p *MergePlan) Report() *dto.ReconcileReport {
	r := &dto.ReconcileReport{
		Operation:  OpMerge,
		OrderID:    p.OrderID,
		SONumber:   p.SONumber,
		Unresolved: slices.Clone(p.unresolved),
	}
	for _, step := range p.steps {
		r.Entries = append(r.Entries, step.entry())
	}
	return r
}

func (m mergeStep) entry() dto.ReconcileEntry {
	e := dto.ReconcileEntry{
		PartNumber: m.partNumber,
		AfterState: []dto.LineItemState{dto.StateOf(m.after)},
		Notes:      m.notes,
	}
	for _, li := range m.before {
		e.BeforeState = append(e.BeforeState, dto.StateOf(li))
	}
	for _, p := range m.migrate {
		e.MigratedPickIDs = append(e.MigratedPickIDs, p.ID)
	}
	for _, li := range m.remove {
		e.DeletedLineItemIDs = append(e.DeletedLineItemIDs, li.ID)
	}
	return e
}

// PlanMerge computes, without writing, how each part's line items collapse
// into one. The kept item gets the summed total, the smallest qty_per_unit of
// the group, and the union of tool sets.
func (s *Service) PlanMerge(ctx context.Context, orderID string, opts MergeOptions) (*MergePlan, error) {
	st, err := loadOrder(ctx, s.store, orderID)
	if err != nil {
		return nil, err
	}

	plan := &MergePlan{OrderID: st.order.ID, SONumber: st.order.SONumber}
	byPart := st.itemsByPart()

	for _, pn := range opts.PartNumbers {
		if _, ok := byPart[pn]; !ok {
			plan.unresolved = append(plan.unresolved, s.unresolved(orderID, OpMerge, &entities.MappingError{PartNumber: pn, Msg: "no line item to merge into"}))
		}
	}

	for _, pn := range sortedParts(byPart, opts.PartNumbers) {
		items := byPart[pn]
		if len(items) < 2 {
			continue
		}
		step, merr := planMergePart(st, pn, items, opts)
		if merr != nil {
			plan.unresolved = append(plan.unresolved, s.unresolved(orderID, OpMerge, merr))
			continue
		}
		plan.steps = append(plan.steps, step)
		metrics.RecordReconcile(OpMerge, "planned")
	}
	return plan, nil
}

func planMergePart(st *orderState, pn entities.PartNumber, items []*entities.LineItem, opts MergeOptions) (mergeStep, *entities.MappingError) {
	pickCount := 0
	keep := items[0]
	for _, li := range items {
		n := len(st.picks[li.ID])
		pickCount += n
		if n > len(st.picks[keep.ID]) {
			keep = li
		}
	}
	if pickCount > 0 && !opts.AllowPickMigration {
		return mergeStep{}, &entities.MappingError{
			PartNumber: pn,
			Msg:        fmt.Sprintf("%d picks recorded across %d line items; pick migration not allowed", pickCount, len(items)),
		}
	}

	var (
		total     entities.Quantity
		minQty    = items[0].QtyPerUnit
		anyShared bool
		union     []string
		tiers     []entities.Quantity
	)
	for _, li := range items {
		total += li.TotalQtyNeeded
		minQty = min(minQty, li.QtyPerUnit)
		if !slices.Contains(tiers, li.QtyPerUnit) {
			tiers = append(tiers, li.QtyPerUnit)
		}
		if li.IsShared() {
			anyShared = true
			continue
		}
		for _, id := range li.ToolIDs {
			if !slices.Contains(union, id) {
				union = append(union, id)
			}
		}
	}

	var toolIDs []string
	if !anyShared && !coversAll(union, st.tools) {
		toolIDs = orderTools(union, st.toolIndex())
	}

	step := mergeStep{
		partNumber: pn,
		before:     items,
		keep:       keep,
		patch: entities.LineItemPatch{
			QtyPerUnit:     minQty.Ptr(),
			TotalQtyNeeded: total.Ptr(),
			ToolIDs:        &entities.ToolIDsValue{Value: toolIDs},
		},
	}
	for _, li := range items {
		if li.ID == keep.ID {
			continue
		}
		step.remove = append(step.remove, li)
		step.migrate = append(step.migrate, st.picks[li.ID]...)
	}
	step.after = keep.Clone()
	step.patch.Apply(step.after)

	if len(tiers) > 1 {
		slices.Sort(tiers)
		step.notes = append(step.notes, fmt.Sprintf("qty_per_unit set to the smallest tier %d of %v; per-tool quantities are lost until the part is split again", minQty, tiers))
	}
	return step, nil
}

func coversAll(toolIDs []string, tools []*entities.Tool) bool {
	if len(tools) == 0 {
		return false
	}
	for _, t := range tools {
		if !slices.Contains(toolIDs, t.ID) {
			return false
		}
	}
	return true
}

// ApplyMerge writes a merge plan in one transaction. Parts whose line items
// or picks changed since planning are skipped and reported as unresolved.
func (s *Service) ApplyMerge(ctx context.Context, plan *MergePlan) (*dto.ReconcileReport, error) {
	defer observe(OpMerge, time.Now())

	report := &dto.ReconcileReport{
		Operation:  OpMerge,
		OrderID:    plan.OrderID,
		SONumber:   plan.SONumber,
		Executed:   true,
		Unresolved: slices.Clone(plan.unresolved),
	}

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		st, err := loadOrder(ctx, tx, plan.OrderID)
		if err != nil {
			return err
		}
		aud := newAuditor(tx, plan.OrderID)

		for _, step := range plan.steps {
			if merr := step.verify(st); merr != nil {
				report.Unresolved = append(report.Unresolved, s.unresolved(plan.OrderID, OpMerge, merr))
				continue
			}
			if err := s.applyMergeStep(ctx, aud, step); err != nil {
				return err
			}
			report.Entries = append(report.Entries, step.entry())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, e := range report.Entries {
		metrics.RecordReconcile(OpMerge, "applied")
		metrics.PicksMigrated.WithLabelValues(OpMerge).Add(float64(len(e.MigratedPickIDs)))
	}
	return report, nil
}

func (s *Service) applyMergeStep(ctx context.Context, aud auditor, step mergeStep) error {
	reason := fmt.Sprintf("merge %d line items of %s into %s", len(step.before), step.partNumber, step.keep.ID)

	for _, p := range step.migrate {
		if err := aud.reassignPick(ctx, p, step.keep.ID, reason); err != nil {
			return err
		}
	}
	if _, err := aud.updateLineItem(ctx, step.keep, step.patch, reason); err != nil {
		return err
	}
	for _, li := range step.remove {
		if err := aud.deleteLineItem(ctx, li, reason); err != nil {
			return err
		}
	}

	s.logger.Info("merged line items",
		zap.String("order_id", step.keep.OrderID),
		zap.String("part_number", string(step.partNumber)),
		zap.String("action", OpMerge),
		zap.String("kept_line_item_id", step.keep.ID),
		zap.Int("deleted_line_items", len(step.remove)),
		zap.Int("migrated_picks", len(step.migrate)),
	)
	return nil
}

// verify checks the planned items and picks against the current state
func (m mergeStep) verify(st *orderState) *entities.MappingError {
	current := make(map[string]*entities.LineItem, len(st.items))
	for _, li := range st.items {
		current[li.ID] = li
	}
	for _, li := range m.before {
		if err := sameItem(m.partNumber, li, current[li.ID]); err != nil {
			return err
		}
	}

	var planned, actual []string
	for _, p := range m.migrate {
		planned = append(planned, p.ID)
	}
	for _, li := range m.remove {
		for _, p := range st.picks[li.ID] {
			actual = append(actual, p.ID)
		}
	}
	slices.Sort(planned)
	slices.Sort(actual)
	if !slices.Equal(planned, actual) {
		return stale(m.partNumber, "picks changed on line items to be deleted")
	}
	return nil
}

func sameItem(pn entities.PartNumber, planned, current *entities.LineItem) *entities.MappingError {
	if current == nil {
		return stale(pn, "line item %s no longer exists", planned.ID)
	}
	if current.QtyPerUnit != planned.QtyPerUnit ||
		current.TotalQtyNeeded != planned.TotalQtyNeeded ||
		(current.ToolIDs == nil) != (planned.ToolIDs == nil) ||
		!slices.Equal(current.ToolIDs, planned.ToolIDs) {
		return stale(pn, "line item %s changed", planned.ID)
	}
	return nil
}
