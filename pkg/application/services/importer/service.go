// Package importer turns the BOM exports named by an import manifest into
// the line items of a new order.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vsinha/picktrack/pkg/application/dto"
	"github.com/vsinha/picktrack/pkg/application/services/explosion"
	"github.com/vsinha/picktrack/pkg/domain/entities"
	"github.com/vsinha/picktrack/pkg/domain/repositories"
	"github.com/vsinha/picktrack/pkg/infrastructure/config"
	"github.com/vsinha/picktrack/pkg/infrastructure/events"
	"github.com/vsinha/picktrack/pkg/infrastructure/logging"
	"github.com/vsinha/picktrack/pkg/infrastructure/metrics"
)

// Service imports orders into a store
type Service struct {
	store  repositories.Store
	logger *zap.Logger
}

// NewService creates an import service
func NewService(store repositories.Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logging.OrDefault(logger)}
}

// prepared is everything an import computes before touching the store
type prepared struct {
	candidates []entities.CandidateLineItem
	catalog    []*entities.CatalogEntry
	lookup     explosion.CatalogLookup
	warnings   []string
}

func (s *Service) prepare(ctx context.Context, m *config.Manifest) (*prepared, error) {
	instances, warnings, err := LoadInstances(m)
	if err != nil {
		return nil, err
	}
	candidates, err := explosion.Merge(instances)
	if err != nil {
		return nil, err
	}
	fileCatalog, err := LoadCatalogFile(m)
	if err != nil {
		return nil, err
	}

	parts := make([]entities.PartNumber, 0, len(candidates))
	for _, c := range candidates {
		parts = append(parts, c.PartNumber)
	}
	known, err := s.store.Catalog().LookupParts(ctx, parts)
	if err != nil {
		return nil, err
	}
	// the manifest's catalog overrides what the store already knows
	for _, e := range fileCatalog {
		known[e.PartNumber] = e
	}

	return &prepared{
		candidates: candidates,
		catalog:    fileCatalog,
		lookup:     explosion.CatalogFromMap(known),
		warnings:   warnings,
	}, nil
}

// Preview computes the line items an import would create without writing
// anything. Tool IDs in the result are the manifest's tool numbers.
func (s *Service) Preview(ctx context.Context, m *config.Manifest) (*dto.ImportResult, error) {
	p, err := s.prepare(ctx, m)
	if err != nil {
		return nil, err
	}

	result := &dto.ImportResult{SONumber: m.SONumber, Warnings: p.warnings}
	toolByInstance := make(map[entities.InstanceID]string, len(m.Tools))
	for _, t := range m.Tools {
		tool, err := entities.NewTool("", t.ToolNumber, t.ToolModel)
		if err != nil {
			return nil, err
		}
		tool.ID = t.ToolNumber
		result.Tools = append(result.Tools, tool)
		toolByInstance[entities.InstanceID(t.Label)] = tool.ID
	}

	items, warnings := explosion.Materializer{ToolByInstance: toolByInstance, Catalog: p.lookup}.Materialize(p.candidates)
	result.LineItems = items
	result.Warnings = append(result.Warnings, warnings...)
	return result, nil
}

// Execute creates the order, its tools and line items in one transaction
// and adds the manifest's catalog to the store. The SO number must be new.
func (s *Service) Execute(ctx context.Context, m *config.Manifest) (*dto.ImportResult, error) {
	defer metrics.ObserveOrder("import", time.Now())

	if existing, err := s.store.Orders().FindOrderBySONumber(ctx, m.SONumber); err == nil {
		return nil, fmt.Errorf("order %s already exists as %s", m.SONumber, existing.ID)
	} else if !errors.Is(err, entities.ErrNotFound) {
		return nil, err
	}

	p, err := s.prepare(ctx, m)
	if err != nil {
		return nil, err
	}

	result := &dto.ImportResult{SONumber: m.SONumber, Warnings: p.warnings, Executed: true}
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		order, err := entities.NewOrder(m.SONumber)
		if err != nil {
			return err
		}
		if err := tx.Orders().CreateOrder(ctx, order); err != nil {
			return err
		}
		result.OrderID = order.ID

		toolByInstance := make(map[entities.InstanceID]string, len(m.Tools))
		for _, t := range m.Tools {
			tool, err := entities.NewTool(order.ID, t.ToolNumber, t.ToolModel)
			if err != nil {
				return err
			}
			if err := tx.Tools().CreateTool(ctx, tool); err != nil {
				return err
			}
			result.Tools = append(result.Tools, tool)
			toolByInstance[entities.InstanceID(t.Label)] = tool.ID
		}

		items, warnings := explosion.Materializer{OrderID: order.ID, ToolByInstance: toolByInstance, Catalog: p.lookup}.Materialize(p.candidates)
		result.Warnings = append(result.Warnings, warnings...)

		stream := events.OrderStream(order.ID)
		for _, li := range items {
			if err := tx.LineItems().CreateLineItem(ctx, li); err != nil {
				return err
			}
			ev := events.NewEvent(events.LineItemCreatedEvent, stream, events.LineItemCreated{LineItem: *li, Reason: "import"})
			if err := tx.Audit().AppendEvent(ctx, stream, ev); err != nil {
				return err
			}
		}
		result.LineItems = items

		if len(p.catalog) > 0 {
			return tx.Catalog().UpsertParts(ctx, p.catalog)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	shared := result.SharedCount()
	metrics.LineItemsImported.WithLabelValues("shared").Add(float64(shared))
	metrics.LineItemsImported.WithLabelValues("tiered").Add(float64(len(result.LineItems) - shared))
	metrics.ImportWarnings.Add(float64(len(result.Warnings)))

	s.logger.Info("imported order",
		zap.String("order_id", result.OrderID),
		zap.String("so_number", result.SONumber),
		zap.Int("tools", len(result.Tools)),
		zap.Int("line_items", len(result.LineItems)),
		zap.Int("shared", shared),
		zap.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}

// PerToolQuantities re-derives each part's quantity per tool of an existing
// order from the manifest's BOMs, matching tools by tool number. These are
// the authoritative quantities a split needs.
func (s *Service) PerToolQuantities(ctx context.Context, orderID string, m *config.Manifest) (map[entities.PartNumber]map[string]entities.Quantity, []string, error) {
	tools, err := s.store.Tools().ListTools(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	byNumber := make(map[string]string, len(tools))
	for _, t := range tools {
		byNumber[t.ToolNumber] = t.ID
	}

	instances, warnings, err := LoadInstances(m)
	if err != nil {
		return nil, nil, err
	}
	toolByInstance := make(map[entities.InstanceID]string, len(m.Tools))
	for _, t := range m.Tools {
		id, ok := byNumber[t.ToolNumber]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("%s: tool %s is not part of the order", t.Label, t.ToolNumber))
			continue
		}
		toolByInstance[entities.InstanceID(t.Label)] = id
	}
	return explosion.PerToolQuantities(instances, toolByInstance), warnings, nil
}
