// Package reconcile restructures the line items of materialized orders
// without losing recorded picks.
//
// Every operation is split into a read-only Plan step, whose Report is the
// dry-run preview, and an Apply step that writes the plan inside one
// transaction per order.
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
	"github.com/vsinha/picktrack/pkg/infrastructure/events"
	"github.com/vsinha/picktrack/pkg/infrastructure/logging"
	"github.com/vsinha/picktrack/pkg/infrastructure/metrics"
)

// Operation names, used in reports, logs and metrics
const (
	OpMerge  = "merge"
	OpSplit  = "split"
	OpExcess = "excess"
	OpAudit  = "audit"
)

// Service runs reconciliation against a store
type Service struct {
	store  repositories.Store
	logger *zap.Logger
}

// NewService creates a reconciliation service
func NewService(store repositories.Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logging.OrDefault(logger)}
}

// orderState is everything reconciliation reads about one order
type orderState struct {
	order *entities.Order
	tools []*entities.Tool
	items []*entities.LineItem
	picks map[string][]*entities.Pick
}

func loadOrder(ctx context.Context, store repositories.Store, orderID string) (*orderState, error) {
	order, err := store.Orders().GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	tools, err := store.Tools().ListTools(ctx, orderID)
	if err != nil {
		return nil, err
	}
	items, err := store.LineItems().ListLineItems(ctx, orderID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(items))
	for i, li := range items {
		ids[i] = li.ID
	}
	picks, err := store.Picks().ListPicksByLineItems(ctx, ids)
	if err != nil {
		return nil, err
	}

	st := &orderState{order: order, tools: tools, items: items, picks: make(map[string][]*entities.Pick)}
	for _, p := range picks {
		st.picks[p.LineItemID] = append(st.picks[p.LineItemID], p)
	}
	return st, nil
}

// itemsByPart groups line items by part number, keeping store order within a part
func (st *orderState) itemsByPart() map[entities.PartNumber][]*entities.LineItem {
	out := make(map[entities.PartNumber][]*entities.LineItem)
	for _, li := range st.items {
		out[li.PartNumber] = append(out[li.PartNumber], li)
	}
	return out
}

func (st *orderState) toolIndex() map[string]int {
	idx := make(map[string]int, len(st.tools))
	for i, t := range st.tools {
		idx[t.ID] = i
	}
	return idx
}

func (st *orderState) toolNumber(toolID string) string {
	for _, t := range st.tools {
		if t.ID == toolID {
			return t.ToolNumber
		}
	}
	return ""
}

// sortedParts returns the keys of byPart in ascending order, restricted to
// filter when it is non-empty
func sortedParts[V any](byPart map[entities.PartNumber]V, filter []entities.PartNumber) []entities.PartNumber {
	var parts []entities.PartNumber
	for pn := range byPart {
		if len(filter) > 0 && !slices.Contains(filter, pn) {
			continue
		}
		parts = append(parts, pn)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i] < parts[j] })
	return parts
}

// orderTools sorts tool IDs into the order's tool sequence; unknown IDs go last
func orderTools(toolIDs []string, index map[string]int) []string {
	out := slices.Clone(toolIDs)
	sort.SliceStable(out, func(i, j int) bool {
		a, aok := index[out[i]]
		b, bok := index[out[j]]
		switch {
		case aok && bok:
			return a < b
		case aok != bok:
			return aok
		default:
			return out[i] < out[j]
		}
	})
	return out
}

// auditor appends the audit trail of one order inside a transaction
type auditor struct {
	tx     repositories.Store
	stream string
}

func newAuditor(tx repositories.Store, orderID string) auditor {
	return auditor{tx: tx, stream: events.OrderStream(orderID)}
}

func (a auditor) append(ctx context.Context, eventType string, data interface{}) error {
	return a.tx.Audit().AppendEvent(ctx, a.stream, events.NewEvent(eventType, a.stream, data))
}

// reassignPick moves a pick and records where it came from
func (a auditor) reassignPick(ctx context.Context, pick *entities.Pick, to, reason string) error {
	if err := a.tx.Picks().ReassignPick(ctx, pick.ID, to); err != nil {
		return err
	}
	return a.append(ctx, events.PickReattributedEvent, events.PickReattributed{
		Pick:           *pick,
		FromLineItemID: pick.LineItemID,
		ToLineItemID:   to,
		Reason:         reason,
	})
}

// updateLineItem applies a patch and records both states
func (a auditor) updateLineItem(ctx context.Context, before *entities.LineItem, patch entities.LineItemPatch, reason string) (*entities.LineItem, error) {
	if err := a.tx.LineItems().UpdateLineItem(ctx, before.ID, patch); err != nil {
		return nil, err
	}
	after := before.Clone()
	patch.Apply(after)
	return after, a.append(ctx, events.LineItemUpdatedEvent, events.LineItemUpdated{Before: *before, After: *after, Reason: reason})
}

// deleteLineItem writes the tombstone, then removes the row
func (a auditor) deleteLineItem(ctx context.Context, li *entities.LineItem, reason string) error {
	if err := a.append(ctx, events.LineItemDeletedEvent, events.LineItemDeleted{LineItem: *li, Reason: reason}); err != nil {
		return err
	}
	return a.tx.LineItems().DeleteLineItem(ctx, li.ID)
}

func (a auditor) createLineItem(ctx context.Context, li *entities.LineItem, reason string) error {
	if err := a.tx.LineItems().CreateLineItem(ctx, li); err != nil {
		return err
	}
	return a.append(ctx, events.LineItemCreatedEvent, events.LineItemCreated{LineItem: *li, Reason: reason})
}

// deletePick writes the tombstone, then removes the row
func (a auditor) deletePick(ctx context.Context, pick *entities.Pick, pn entities.PartNumber, reason string) error {
	if err := a.append(ctx, events.PickDeletedEvent, events.PickDeleted{Pick: *pick, PartNumber: pn, Reason: reason}); err != nil {
		return err
	}
	return a.tx.Picks().DeletePick(ctx, pick.ID)
}

func (s *Service) unresolved(orderID string, op string, err *entities.MappingError) dto.Unresolved {
	s.logger.Warn("part left unresolved",
		zap.String("order_id", orderID),
		zap.String("operation", op),
		zap.String("part_number", string(err.PartNumber)),
		zap.String("reason", err.Msg),
	)
	metrics.RecordReconcile(op, "unresolved")
	return dto.Unresolved{PartNumber: err.PartNumber, Reason: err.Msg}
}

// RunBatch runs fn for each order. A failing order is recorded and skipped;
// it never stops the batch.
func (s *Service) RunBatch(ctx context.Context, orderIDs []string, fn func(ctx context.Context, orderID string) (*dto.ReconcileReport, error)) *dto.BatchResult {
	result := &dto.BatchResult{Failed: make(map[string]string)}
	for _, id := range orderIDs {
		report, err := fn(ctx, id)
		if err != nil {
			s.logger.Error("order failed", zap.String("order_id", id), zap.Error(err))
			result.Failed[id] = err.Error()
			continue
		}
		result.Reports = append(result.Reports, report)
	}
	return result
}

func stale(pn entities.PartNumber, format string, args ...any) *entities.MappingError {
	return &entities.MappingError{PartNumber: pn, Msg: "plan is stale: " + fmt.Sprintf(format, args...)}
}

func observe(op string, start time.Time) {
	metrics.ObserveOrder(op, start)
}
