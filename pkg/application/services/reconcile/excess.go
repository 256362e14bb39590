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

// ExcessOptions selects what PlanExcessRepair touches
type ExcessOptions struct {
	PartNumbers []entities.PartNumber
	PickIDs     []string
	// Reattribute moves an excess pick to a sibling tier covering its tool
	// instead of deleting it, when such a tier exists
	Reattribute bool
}

type excessStep struct {
	excess  dto.ExcessPick
	pick    *entities.Pick
	moveTo  string
	partRef entities.PartNumber
}

// ExcessPlan repairs excess picks by deleting or reattributing them
type ExcessPlan struct {
	OrderID  string
	SONumber string
	steps    []excessStep
}

// Empty reports whether applying the plan would change nothing
func (p *ExcessPlan) Empty() bool { return len(p.steps) == 0 }

// Excess returns the picks the plan acts on
func (p *ExcessPlan) Excess() []dto.ExcessPick {
	out := make([]dto.ExcessPick, len(p.steps))
	for i, s := range p.steps {
		out[i] = s.excess
	}
	return out
}

// Report renders the plan as a dry-run report
func (p *ExcessPlan) Report() *dto.ReconcileReport {
	r := &dto.ReconcileReport{Operation: OpExcess, OrderID: p.OrderID, SONumber: p.SONumber}
	for _, s := range p.steps {
		r.Entries = append(r.Entries, s.entry())
	}
	return r
}

func (s excessStep) entry() dto.ReconcileEntry {
	e := dto.ReconcileEntry{PartNumber: s.partRef}
	if s.moveTo != "" {
		e.MigratedPickIDs = []string{s.pick.ID}
		e.Notes = []string{fmt.Sprintf("pick %s (tool %s, qty %d) moved from %s to %s", s.pick.ID, s.excess.ToolNumber, s.pick.QtyPicked, s.pick.LineItemID, s.moveTo)}
		return e
	}
	e.DeletedPickIDs = []string{s.pick.ID}
	e.Notes = []string{fmt.Sprintf("pick %s (tool %s, qty %d, by %s at %s) deleted from %s", s.pick.ID, s.excess.ToolNumber, s.pick.QtyPicked, s.pick.PickedBy, s.pick.PickedAt.Format(time.RFC3339), s.pick.LineItemID)}
	return e
}

// DetectExcessPicks lists picks whose tool is not covered by their line
// item. Shared line items never have excess picks. Nothing is written.
func (s *Service) DetectExcessPicks(ctx context.Context, orderID string) ([]dto.ExcessPick, error) {
	st, err := loadOrder(ctx, s.store, orderID)
	if err != nil {
		return nil, err
	}
	return detectExcess(st), nil
}

func detectExcess(st *orderState) []dto.ExcessPick {
	byPart := st.itemsByPart()
	var out []dto.ExcessPick

	for _, li := range st.items {
		if li.IsShared() {
			continue
		}
		for _, p := range st.picks[li.ID] {
			if li.AppliesTo(p.ToolID) {
				continue
			}
			ex := dto.ExcessPick{
				PickID:          p.ID,
				LineItemID:      li.ID,
				PartNumber:      li.PartNumber,
				ToolID:          p.ToolID,
				ToolNumber:      st.toolNumber(p.ToolID),
				QtyPicked:       p.QtyPicked,
				PickedBy:        p.PickedBy,
				PickedAt:        p.PickedAt,
				Notes:           p.Notes,
				LineItemToolIDs: slices.Clone(li.ToolIDs),
			}
			for _, sibling := range byPart[li.PartNumber] {
				if sibling.ID != li.ID && sibling.AppliesTo(p.ToolID) {
					ex.ReattributeTo = sibling.ID
					break
				}
			}
			out = append(out, ex)
		}
	}
	return out
}

// PlanExcessRepair selects excess picks to repair. Nothing is written.
func (s *Service) PlanExcessRepair(ctx context.Context, orderID string, opts ExcessOptions) (*ExcessPlan, error) {
	st, err := loadOrder(ctx, s.store, orderID)
	if err != nil {
		return nil, err
	}

	picks := make(map[string]*entities.Pick)
	for _, ps := range st.picks {
		for _, p := range ps {
			picks[p.ID] = p
		}
	}

	plan := &ExcessPlan{OrderID: st.order.ID, SONumber: st.order.SONumber}
	for _, ex := range detectExcess(st) {
		if len(opts.PartNumbers) > 0 && !slices.Contains(opts.PartNumbers, ex.PartNumber) {
			continue
		}
		if len(opts.PickIDs) > 0 && !slices.Contains(opts.PickIDs, ex.PickID) {
			continue
		}
		step := excessStep{excess: ex, pick: picks[ex.PickID], partRef: ex.PartNumber}
		if opts.Reattribute {
			step.moveTo = ex.ReattributeTo
		}
		plan.steps = append(plan.steps, step)
		metrics.RecordReconcile(OpExcess, "planned")
	}
	return plan, nil
}

// ApplyExcessRepair deletes or reattributes the planned picks. Deleting a
// pick permanently reduces recorded picked quantity, so the call fails with
// ErrConfirmationRequired unless confirmed is true. A tombstone of every
// deleted pick is written to the audit trail first.
func (s *Service) ApplyExcessRepair(ctx context.Context, plan *ExcessPlan, confirmed bool) (*dto.ReconcileReport, error) {
	if !confirmed && !plan.Empty() {
		return nil, fmt.Errorf("repair %d excess picks on order %s: %w", len(plan.steps), plan.SONumber, entities.ErrConfirmationRequired)
	}
	defer observe(OpExcess, time.Now())

	report := &dto.ReconcileReport{Operation: OpExcess, OrderID: plan.OrderID, SONumber: plan.SONumber, Executed: true}

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		st, err := loadOrder(ctx, tx, plan.OrderID)
		if err != nil {
			return err
		}
		current := make(map[string]dto.ExcessPick)
		for _, ex := range detectExcess(st) {
			current[ex.PickID] = ex
		}
		items := make(map[string]*entities.LineItem, len(st.items))
		for _, li := range st.items {
			items[li.ID] = li
		}
		aud := newAuditor(tx, plan.OrderID)

		for _, step := range plan.steps {
			if problem := staleExcess(step, current, items); problem != nil {
				report.Unresolved = append(report.Unresolved, s.unresolved(plan.OrderID, OpExcess, problem))
				continue
			}

			if step.moveTo != "" {
				reason := fmt.Sprintf("excess pick for tool %s moved to the tier that covers it", step.excess.ToolNumber)
				if err := aud.reassignPick(ctx, step.pick, step.moveTo, reason); err != nil {
					return err
				}
				s.logger.Info("reattributed excess pick",
					zap.String("order_id", plan.OrderID),
					zap.String("part_number", string(step.partRef)),
					zap.String("action", "excess.reattribute"),
					zap.String("pick_id", step.pick.ID),
					zap.String("to_line_item_id", step.moveTo),
				)
			} else {
				reason := fmt.Sprintf("excess pick: tool %s is not covered by line item %s", step.excess.ToolNumber, step.pick.LineItemID)
				if err := aud.deletePick(ctx, step.pick, step.partRef, reason); err != nil {
					return err
				}
				s.logger.Info("deleted excess pick",
					zap.String("order_id", plan.OrderID),
					zap.String("part_number", string(step.partRef)),
					zap.String("action", "excess.delete"),
					zap.String("pick_id", step.pick.ID),
					zap.Int64("qty_picked", int64(step.pick.QtyPicked)),
				)
			}
			report.Entries = append(report.Entries, step.entry())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, e := range report.Entries {
		metrics.RecordReconcile(OpExcess, "applied")
		if len(e.DeletedPickIDs) > 0 {
			metrics.PicksDeleted.WithLabelValues("excess").Inc()
		} else {
			metrics.PicksMigrated.WithLabelValues(OpExcess).Inc()
		}
	}
	return report, nil
}

// staleExcess checks a planned step against the state read inside the
// transaction. The pick must still be excess on the same line item, and a
// reattribution target must still exist and cover the pick's tool.
func staleExcess(step excessStep, current map[string]dto.ExcessPick, items map[string]*entities.LineItem) *entities.MappingError {
	ex, ok := current[step.pick.ID]
	if !ok {
		return stale(step.partRef, "pick %s is no longer an excess pick", step.pick.ID)
	}
	if ex.LineItemID != step.pick.LineItemID {
		return stale(step.partRef, "pick %s moved from line item %s to %s", step.pick.ID, step.pick.LineItemID, ex.LineItemID)
	}
	if step.moveTo == "" {
		return nil
	}
	target, ok := items[step.moveTo]
	if !ok {
		return stale(step.partRef, "line item %s no longer exists", step.moveTo)
	}
	if !target.AppliesTo(step.pick.ToolID) {
		return stale(step.partRef, "line item %s no longer covers tool %s", step.moveTo, step.excess.ToolNumber)
	}
	return nil
}
