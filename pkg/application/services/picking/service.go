// Package picking records and undoes picks against materialized line items
// and reports picking progress.
package picking

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/vsinha/picktrack/pkg/application/dto"
	"github.com/vsinha/picktrack/pkg/domain/entities"
	"github.com/vsinha/picktrack/pkg/domain/repositories"
	"github.com/vsinha/picktrack/pkg/infrastructure/events"
	"github.com/vsinha/picktrack/pkg/infrastructure/logging"
)

// Service maintains the pick ledger
type Service struct {
	store  repositories.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a picking service
func NewService(store repositories.Store, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		logger: logging.OrDefault(logger),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// PickRequest describes one pick to record
type PickRequest struct {
	LineItemID string
	ToolID     string
	Qty        entities.Quantity
	PickedBy   string
	Notes      string
}

// RecordPick appends a pick. The tool must belong to the line item's order
// and be covered by the line item.
func (s *Service) RecordPick(ctx context.Context, req PickRequest) (*entities.Pick, error) {
	if req.Qty <= 0 {
		return nil, fmt.Errorf("%w: qty must be positive, got %d", entities.ErrInvalidQuantity, req.Qty)
	}

	var pick *entities.Pick
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		li, err := tx.LineItems().GetLineItem(ctx, req.LineItemID)
		if err != nil {
			return fmt.Errorf("line item %s: %w", req.LineItemID, err)
		}
		tools, err := tx.Tools().ListTools(ctx, li.OrderID)
		if err != nil {
			return err
		}
		if !slices.ContainsFunc(tools, func(t *entities.Tool) bool { return t.ID == req.ToolID }) {
			return fmt.Errorf("tool %s is not part of order %s: %w", req.ToolID, li.OrderID, entities.ErrToolNotApplicable)
		}
		if !li.AppliesTo(req.ToolID) {
			return fmt.Errorf("tool %s on %s (tools %v): %w", req.ToolID, li.PartNumber, li.ToolIDs, entities.ErrToolNotApplicable)
		}

		pick, err = entities.NewPick(li.ID, req.ToolID, req.Qty, req.PickedBy, s.now(), req.Notes)
		if err != nil {
			return err
		}
		if err := tx.Picks().CreatePick(ctx, pick); err != nil {
			return err
		}
		return appendEvent(ctx, tx, li.OrderID, events.PickCreatedEvent, events.PickCreated{Pick: *pick, Reason: "picked"})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("recorded pick",
		zap.String("pick_id", pick.ID),
		zap.String("line_item_id", pick.LineItemID),
		zap.String("tool_id", pick.ToolID),
		zap.Int64("qty", int64(pick.QtyPicked)),
	)
	return pick, nil
}

// UndoPick takes back qty from a pick; qty 0 undoes the whole pick. Pick
// quantities are never updated in place: a partial undo deletes the pick and
// records the remainder as a new one. A tombstone precedes every deletion.
func (s *Service) UndoPick(ctx context.Context, pickID string, qty entities.Quantity) (*entities.Pick, error) {
	if qty < 0 {
		return nil, fmt.Errorf("%w: undo qty cannot be negative, got %d", entities.ErrInvalidQuantity, qty)
	}

	var remainder *entities.Pick
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		pick, err := tx.Picks().GetPick(ctx, pickID)
		if err != nil {
			return fmt.Errorf("pick %s: %w", pickID, err)
		}
		if qty == 0 {
			qty = pick.QtyPicked
		}
		if qty > pick.QtyPicked {
			return fmt.Errorf("%w: cannot undo %d of pick %s with %d picked", entities.ErrInvalidQuantity, qty, pickID, pick.QtyPicked)
		}
		li, err := tx.LineItems().GetLineItem(ctx, pick.LineItemID)
		if err != nil {
			return err
		}

		reason := fmt.Sprintf("undo %d of %d", qty, pick.QtyPicked)
		if err := appendEvent(ctx, tx, li.OrderID, events.PickDeletedEvent, events.PickDeleted{Pick: *pick, PartNumber: li.PartNumber, Reason: reason}); err != nil {
			return err
		}
		if err := tx.Picks().DeletePick(ctx, pick.ID); err != nil {
			return err
		}
		if qty == pick.QtyPicked {
			return nil
		}

		remainder, err = entities.NewPick(pick.LineItemID, pick.ToolID, pick.QtyPicked-qty, pick.PickedBy, pick.PickedAt, pick.Notes)
		if err != nil {
			return err
		}
		if err := tx.Picks().CreatePick(ctx, remainder); err != nil {
			return err
		}
		return appendEvent(ctx, tx, li.OrderID, events.PickCreatedEvent, events.PickCreated{Pick: *remainder, Reason: "remainder of " + pick.ID})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("undid pick", zap.String("pick_id", pickID), zap.Int64("qty", int64(qty)))
	return remainder, nil
}

// Progress reports picked against needed quantities for an order
func (s *Service) Progress(ctx context.Context, orderID string) (*dto.ProgressReport, error) {
	order, err := s.store.Orders().GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	tools, err := s.store.Tools().ListTools(ctx, orderID)
	if err != nil {
		return nil, err
	}
	items, err := s.store.LineItems().ListLineItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(items))
	for i, li := range items {
		ids[i] = li.ID
	}
	picks, err := s.store.Picks().ListPicksByLineItems(ctx, ids)
	if err != nil {
		return nil, err
	}

	pickedByItem := make(map[string]entities.Quantity)
	pickedByTool := make(map[string]entities.Quantity)
	for _, p := range picks {
		pickedByItem[p.LineItemID] += p.QtyPicked
		pickedByTool[p.ToolID] += p.QtyPicked
	}

	report := &dto.ProgressReport{
		OrderID:   order.ID,
		SONumber:  order.SONumber,
		LineItems: make([]dto.LineItemProgress, 0, len(items)),
		Tools:     make([]dto.ToolProgress, 0, len(tools)),
	}
	var counted entities.Quantity
	for _, li := range items {
		picked := pickedByItem[li.ID]
		report.LineItems = append(report.LineItems, dto.LineItemProgress{
			LineItemID:     li.ID,
			PartNumber:     li.PartNumber,
			Description:    li.Description,
			Location:       li.Location,
			AssemblyGroup:  li.AssemblyGroup,
			ToolIDs:        li.ToolIDs,
			QtyPerUnit:     li.QtyPerUnit,
			TotalQtyNeeded: li.TotalQtyNeeded,
			QtyPicked:      picked,
			Remaining:      max(0, li.TotalQtyNeeded-picked),
		})
		report.TotalNeeded += li.TotalQtyNeeded
		report.TotalPicked += picked
		counted += min(picked, li.TotalQtyNeeded)
	}

	for _, t := range tools {
		tp := dto.ToolProgress{ToolID: t.ID, ToolNumber: t.ToolNumber, Picked: pickedByTool[t.ID]}
		for _, li := range items {
			if li.AppliesTo(t.ID) {
				tp.Needed += li.QtyPerUnit
			}
		}
		report.Tools = append(report.Tools, tp)
	}

	if report.TotalNeeded > 0 {
		report.PercentComplete = 100 * float64(counted) / float64(report.TotalNeeded)
	}
	return report, nil
}

func appendEvent(ctx context.Context, tx repositories.Store, orderID, eventType string, data interface{}) error {
	stream := events.OrderStream(orderID)
	return tx.Audit().AppendEvent(ctx, stream, events.NewEvent(eventType, stream, data))
}
