package reconcile

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/vsinha/picktrack/pkg/application/dto"
	"github.com/vsinha/picktrack/pkg/domain/entities"
	"github.com/vsinha/picktrack/pkg/domain/repositories"
	"github.com/vsinha/picktrack/pkg/infrastructure/metrics"
)

// SplitOptions carries the authoritative per-tool quantities a split needs.
// They cannot be recovered from a merged line item and must be re-derived
// from the BOMs (see explosion.PerToolQuantities).
type SplitOptions struct {
	PartNumbers []entities.PartNumber
	PerTool     map[entities.PartNumber]map[string]entities.Quantity
}

type splitTier struct {
	qty     entities.Quantity
	toolIDs []string
}

type splitStep struct {
	partNumber entities.PartNumber
	original   *entities.LineItem
	patch      entities.LineItemPatch
	kept       *entities.LineItem
	created    []*entities.LineItem
	picks      []*entities.Pick
	// target is the tier index of each pick; 0 is the kept item
	target []int
}

// SplitPlan breaks single line items into one item per quantity tier
type SplitPlan struct {
	OrderID    string
	SONumber   string
	steps      []splitStep
	unresolved []dto.Unresolved
}

// Empty reports whether applying the plan would change nothing
func (p *SplitPlan) Empty() bool { return len(p.steps) == 0 }

// Report renders the plan as a dry-run report
func (p *SplitPlan) Report() *dto.ReconcileReport {
	r := &dto.ReconcileReport{
		Operation:  OpSplit,
		OrderID:    p.OrderID,
		SONumber:   p.SONumber,
		Unresolved: slices.Clone(p.unresolved),
	}
	for _, step := range p.steps {
		r.Entries = append(r.Entries, step.entry(step.created))
	}
	return r
}

func (s splitStep) entry(created []*entities.LineItem) dto.ReconcileEntry {
	e := dto.ReconcileEntry{
		PartNumber:  s.partNumber,
		BeforeState: []dto.LineItemState{dto.StateOf(s.original)},
		AfterState:  []dto.LineItemState{dto.StateOf(s.kept)},
	}
	for _, li := range created {
		e.AfterState = append(e.AfterState, dto.StateOf(li))
		if li.ID != "" {
			e.CreatedLineItemIDs = append(e.CreatedLineItemIDs, li.ID)
		}
	}
	for i, p := range s.picks {
		if s.target[i] != 0 {
			e.MigratedPickIDs = append(e.MigratedPickIDs, p.ID)
		}
	}
	return e
}

// PlanSplit computes, without writing, how each part's single line item
// splits into quantity tiers. The highest-quantity tier keeps the existing
// item; every pick follows its tool.
func (s *Service) PlanSplit(ctx context.Context, orderID string, opts SplitOptions) (*SplitPlan, error) {
	st, err := loadOrder(ctx, s.store, orderID)
	if err != nil {
		return nil, err
	}

	plan := &SplitPlan{OrderID: st.order.ID, SONumber: st.order.SONumber}
	byPart := st.itemsByPart()

	for _, pn := range sortedParts(opts.PerTool, opts.PartNumbers) {
		step, changed, merr := planSplitPart(st, pn, byPart[pn], opts.PerTool[pn])
		if merr != nil {
			plan.unresolved = append(plan.unresolved, s.unresolved(orderID, OpSplit, merr))
			continue
		}
		if !changed {
			continue
		}
		plan.steps = append(plan.steps, step)
		metrics.RecordReconcile(OpSplit, "planned")
	}
	return plan, nil
}

func planSplitPart(st *orderState, pn entities.PartNumber, items []*entities.LineItem, perTool map[string]entities.Quantity) (splitStep, bool, *entities.MappingError) {
	switch {
	case len(items) == 0:
		return splitStep{}, false, &entities.MappingError{PartNumber: pn, Msg: "no line item to split"}
	case len(items) > 1:
		return splitStep{}, false, &entities.MappingError{PartNumber: pn, Msg: fmt.Sprintf("already split into %d line items; merge first to re-split", len(items))}
	}
	original := items[0]

	tiers, merr := tiersFor(st, pn, perTool)
	if merr != nil {
		return splitStep{}, false, merr
	}

	step := splitStep{partNumber: pn, original: original}

	// the highest tier keeps the existing row
	head := tiers[0]
	total := head.qty * entities.Quantity(len(head.toolIDs))
	var headTools []string
	if len(tiers) > 1 || !coversAll(head.toolIDs, st.tools) {
		headTools = head.toolIDs
	}
	step.patch = entities.LineItemPatch{
		QtyPerUnit:     head.qty.Ptr(),
		TotalQtyNeeded: total.Ptr(),
		ToolIDs:        &entities.ToolIDsValue{Value: headTools},
	}
	step.kept = original.Clone()
	step.patch.Apply(step.kept)

	for _, tier := range tiers[1:] {
		li, err := entities.NewLineItem(original.OrderID, pn, tier.qty, tier.qty*entities.Quantity(len(tier.toolIDs)), tier.toolIDs)
		if err != nil {
			return splitStep{}, false, &entities.MappingError{PartNumber: pn, Msg: err.Error()}
		}
		li.Description = original.Description
		li.Location = original.Location
		li.AssemblyGroup = original.AssemblyGroup
		step.created = append(step.created, li)
	}

	all := append([]*entities.LineItem{step.kept}, step.created...)
	for _, p := range st.picks[original.ID] {
		idx := slices.IndexFunc(all, func(li *entities.LineItem) bool { return li.AppliesTo(p.ToolID) })
		if idx < 0 {
			return splitStep{}, false, &entities.MappingError{
				PartNumber: pn,
				Msg:        fmt.Sprintf("pick %s for tool %s matches no quantity tier", p.ID, p.ToolID),
			}
		}
		step.picks = append(step.picks, p)
		step.target = append(step.target, idx)
	}

	changed := len(step.created) > 0 || sameItem(pn, original, step.kept) != nil
	return step, changed, nil
}

// tiersFor groups the order's tools by required quantity, highest first
func tiersFor(st *orderState, pn entities.PartNumber, perTool map[string]entities.Quantity) ([]splitTier, *entities.MappingError) {
	index := st.toolIndex()
	byQty := make(map[entities.Quantity][]string)
	for toolID, qty := range perTool {
		if _, ok := index[toolID]; !ok {
			return nil, &entities.MappingError{PartNumber: pn, Msg: fmt.Sprintf("tool %s is not part of the order", toolID)}
		}
		if qty <= 0 {
			continue
		}
		byQty[qty] = append(byQty[qty], toolID)
	}
	if len(byQty) == 0 {
		return nil, &entities.MappingError{PartNumber: pn, Msg: "no per-tool quantities"}
	}

	tiers := make([]splitTier, 0, len(byQty))
	for qty, toolIDs := range byQty {
		tiers = append(tiers, splitTier{qty: qty, toolIDs: orderTools(toolIDs, index)})
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].qty > tiers[j].qty })
	return tiers, nil
}

// ApplySplit writes a split plan in one transaction. Parts whose line item or
// picks changed since planning are skipped and reported as unresolved.
func (s *Service) ApplySplit(ctx context.Context, plan *SplitPlan) (*dto.ReconcileReport, error) {
	defer observe(OpSplit, time.Now())

	report := &dto.ReconcileReport{
		Operation:  OpSplit,
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
				report.Unresolved = append(report.Unresolved, s.unresolved(plan.OrderID, OpSplit, merr))
				continue
			}
			created, err := s.applySplitStep(ctx, aud, step)
			if err != nil {
				return err
			}
			report.Entries = append(report.Entries, step.entry(created))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, e := range report.Entries {
		metrics.RecordReconcile(OpSplit, "applied")
		metrics.PicksMigrated.WithLabelValues(OpSplit).Add(float64(len(e.MigratedPickIDs)))
	}
	return report, nil
}

func (s *Service) applySplitStep(ctx context.Context, aud auditor, step splitStep) ([]*entities.LineItem, error) {
	reason := fmt.Sprintf("split %s into %d quantity tiers", step.partNumber, len(step.created)+1)

	created := make([]*entities.LineItem, len(step.created))
	for i, li := range step.created {
		c := li.Clone()
		c.ID = ""
		if err := aud.createLineItem(ctx, c, reason); err != nil {
			return nil, err
		}
		created[i] = c
	}

	if _, err := aud.updateLineItem(ctx, step.original, step.patch, reason); err != nil {
		return nil, err
	}

	migrated := 0
	for i, p := range step.picks {
		if step.target[i] == 0 {
			continue
		}
		if err := aud.reassignPick(ctx, p, created[step.target[i]-1].ID, reason); err != nil {
			return nil, err
		}
		migrated++
	}

	s.logger.Info("split line item",
		zap.String("order_id", step.original.OrderID),
		zap.String("part_number", string(step.partNumber)),
		zap.String("action", OpSplit),
		zap.String("kept_line_item_id", step.original.ID),
		zap.Int("created_line_items", len(created)),
		zap.Int("migrated_picks", migrated),
	)
	return created, nil
}

func (s splitStep) verify(st *orderState) *entities.MappingError {
	var current *entities.LineItem
	for _, li := range st.items {
		if li.ID == s.original.ID {
			current = li
		}
	}
	if err := sameItem(s.partNumber, s.original, current); err != nil {
		return err
	}

	var planned, actual []string
	for _, p := range s.picks {
		planned = append(planned, p.ID)
	}
	for _, p := range st.picks[s.original.ID] {
		actual = append(actual, p.ID)
	}
	slices.Sort(planned)
	slices.Sort(actual)
	if !slices.Equal(planned, actual) {
		return stale(s.partNumber, "picks changed on line item %s", s.original.ID)
	}
	return nil
}
