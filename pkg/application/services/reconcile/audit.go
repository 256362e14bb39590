package reconcile

import (
	"context"
	"fmt"
	"slices"

	"github.com/vsinha/picktrack/pkg/application/dto"
	"github.com/vsinha/picktrack/pkg/domain/entities"
	"github.com/vsinha/picktrack/pkg/infrastructure/metrics"
)

// Audit reports every invariant violation on an order. It never writes;
// violations are fixed only by the explicit reconciliation operations.
func (s *Service) Audit(ctx context.Context, orderID string) (*dto.AuditReport, error) {
	st, err := loadOrder(ctx, s.store, orderID)
	if err != nil {
		return nil, err
	}

	report := &dto.AuditReport{OrderID: st.order.ID, SONumber: st.order.SONumber, Violations: []dto.Violation{}}
	add := func(v *entities.InvariantViolation) {
		metrics.InvariantViolations.WithLabelValues(string(v.Kind)).Inc()
		report.Violations = append(report.Violations, dto.Violation{
			Kind:       v.Kind,
			LineItemID: v.LineItemID,
			PartNumber: v.PartNumber,
			Message:    v.Msg,
		})
	}

	index := st.toolIndex()
	toolCount := len(st.tools)

	for _, li := range st.items {
		if want := li.ExpectedTotal(toolCount); li.TotalQtyNeeded != want {
			add(&entities.InvariantViolation{
				Kind:       entities.ViolationTotalMismatch,
				LineItemID: li.ID,
				PartNumber: li.PartNumber,
				Msg:        fmt.Sprintf("total_qty_needed %d != %d x %d tools", li.TotalQtyNeeded, li.QtyPerUnit, li.ToolCount(toolCount)),
			})
		}
		for _, id := range li.ToolIDs {
			if _, ok := index[id]; !ok {
				add(&entities.InvariantViolation{
					Kind:       entities.ViolationForeignTool,
					LineItemID: li.ID,
					PartNumber: li.PartNumber,
					Msg:        fmt.Sprintf("tool_ids references tool %s outside the order", id),
				})
			}
		}
		for _, p := range st.picks[li.ID] {
			if _, ok := index[p.ToolID]; !ok {
				add(&entities.InvariantViolation{
					Kind:       entities.ViolationForeignTool,
					LineItemID: li.ID,
					PartNumber: li.PartNumber,
					Msg:        fmt.Sprintf("pick %s references tool %s outside the order", p.ID, p.ToolID),
				})
			}
		}
	}

	for _, ex := range detectExcess(st) {
		msg := fmt.Sprintf("pick %s: tool %s picked %d against tiers %v", ex.PickID, ex.ToolID, ex.QtyPicked, ex.LineItemToolIDs)
		add(&entities.InvariantViolation{Kind: entities.ViolationExcessPick, LineItemID: ex.LineItemID, PartNumber: ex.PartNumber, Msg: msg})
	}

	byPart := st.itemsByPart()
	for _, pn := range sortedParts(byPart, nil) {
		items := byPart[pn]
		shared := 0
		for _, li := range items {
			if li.IsShared() {
				shared++
			}
		}
		if shared > 1 {
			add(&entities.InvariantViolation{
				Kind:       entities.ViolationDuplicateShared,
				PartNumber: pn,
				Msg:        fmt.Sprintf("%d line items apply to all tools", shared),
			})
		}

		for i := 0; i < len(items); i++ {
			for j := i + 1; j < len(items); j++ {
				if tool, ok := overlap(items[i], items[j], st.tools); ok && !(items[i].IsShared() && items[j].IsShared()) {
					add(&entities.InvariantViolation{
						Kind:       entities.ViolationOverlappingTiers,
						LineItemID: items[j].ID,
						PartNumber: pn,
						Msg:        fmt.Sprintf("line items %s and %s both cover tool %s", items[i].ID, items[j].ID, tool),
					})
				}
			}
		}
	}

	return report, nil
}

// overlap returns a tool covered by both items, if any
func overlap(a, b *entities.LineItem, tools []*entities.Tool) (string, bool) {
	for _, t := range tools {
		if a.AppliesTo(t.ID) && b.AppliesTo(t.ID) {
			return t.ID, true
		}
	}
	for _, id := range a.ToolIDs {
		if slices.Contains(b.ToolIDs, id) {
			return id, true
		}
	}
	return "", false
}
